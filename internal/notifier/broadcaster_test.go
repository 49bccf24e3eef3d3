package notifier

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/chainledger/internal/models"
	"github.com/thanhnp/chainledger/pkg/semver"
)

var errUnreachable = errors.New("connection refused")

type fakePeer struct {
	url      string
	fail     bool
	hang     bool
	reject   bool
	version  string
	report   *models.ChainReport
	mu       sync.Mutex
	received []models.Transaction
	nodes    []string
}

func (f *fakePeer) URL() string { return f.url }

func (f *fakePeer) wait(ctx context.Context) error {
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.fail {
		return errUnreachable
	}
	return nil
}

func (f *fakePeer) CheckVersion(ctx context.Context, local *semver.Version) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	if f.version != "" && !local.Compatible(semver.MustParse(f.version)) {
		return errors.New("incompatible")
	}
	return nil
}

func (f *fakePeer) Blockchain(ctx context.Context) (*models.ChainReport, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.report, nil
}

func (f *fakePeer) SubmitTransaction(ctx context.Context, tx models.Transaction) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, tx)
	return nil
}

func (f *fakePeer) ReceiveBlock(ctx context.Context, block models.Block) (bool, error) {
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	return !f.reject, nil
}

func (f *fakePeer) RegisterNode(ctx context.Context, url string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, url)
	return nil
}

func (f *fakePeer) RegisterNodesBulk(ctx context.Context, urls []string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes = append(f.nodes, urls...)
	return nil
}

func (f *fakePeer) RegisterAndBroadcast(ctx context.Context, url string) error {
	return f.RegisterNode(ctx, url)
}

func dialerFor(peers ...*fakePeer) Dialer {
	byURL := make(map[string]*fakePeer, len(peers))
	for _, p := range peers {
		byURL[p.url] = p
	}
	return func(url string) Peer { return byURL[url] }
}

func TestBroadcastTransactionPartialFailure(t *testing.T) {
	a := &fakePeer{url: "http://a"}
	b := &fakePeer{url: "http://b", fail: true}
	c := &fakePeer{url: "http://c"}
	bc := NewBroadcaster(dialerFor(a, b, c), time.Second, 2)

	tx := models.Transaction{TransactionID: "t", Amount: 1, Sender: "A", Recipient: "B"}
	results := bc.BroadcastTransaction(context.Background(), []string{"http://a", "http://b", "http://c"}, tx)

	require.Len(t, results, 3)
	assert.Equal(t, "http://a", results[0].Peer)
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, errUnreachable)
	assert.True(t, results[2].OK())
	assert.Equal(t, []models.Transaction{tx}, a.received)
	assert.Equal(t, []models.Transaction{tx}, c.received)

	failed := Failed(results)
	require.Len(t, failed, 1)
	assert.Equal(t, "http://b", failed[0].Peer)
}

func TestFanOutPerPeerTimeout(t *testing.T) {
	slow := &fakePeer{url: "http://slow", hang: true}
	fast := &fakePeer{url: "http://fast"}
	bc := NewBroadcaster(dialerFor(slow, fast), 20*time.Millisecond, 0)

	start := time.Now()
	results := bc.BroadcastNode(context.Background(), []string{"http://slow", "http://fast"}, "http://new")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.True(t, results[1].OK())
	assert.Equal(t, []string{"http://new"}, fast.nodes)
}

func TestFanOutRespectsParallelLimit(t *testing.T) {
	var peers []*fakePeer
	var urls []string
	for _, u := range []string{"http://1", "http://2", "http://3", "http://4", "http://5"} {
		peers = append(peers, &fakePeer{url: u})
		urls = append(urls, u)
	}
	bc := NewBroadcaster(dialerFor(peers...), time.Second, 2)

	var inFlight, maxSeen int32
	bc.FanOut(context.Background(), urls, func(ctx context.Context, p Peer) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxSeen)
			if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})

	assert.LessOrEqual(t, maxSeen, int32(2))
}

func TestBroadcastBlockRejection(t *testing.T) {
	ok := &fakePeer{url: "http://ok"}
	behind := &fakePeer{url: "http://behind", reject: true}
	bc := NewBroadcaster(dialerFor(ok, behind), time.Second, 4)

	results := bc.BroadcastBlock(context.Background(), []string{"http://ok", "http://behind"}, models.Block{Index: 2})
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, ErrBlockRejected)
}

func TestCollectChains(t *testing.T) {
	r1 := &models.ChainReport{Chain: []models.Block{{Index: 1}}}
	r3 := &models.ChainReport{Chain: []models.Block{{Index: 1}, {Index: 2}}}
	p1 := &fakePeer{url: "http://1", report: r1}
	p2 := &fakePeer{url: "http://2", fail: true}
	p3 := &fakePeer{url: "http://3", report: r3}
	p4 := &fakePeer{url: "http://4", report: r3, version: "2.0.0"}
	bc := NewBroadcaster(dialerFor(p1, p2, p3, p4), time.Second, 4)

	reports, results := bc.CollectChains(context.Background(),
		[]string{"http://1", "http://2", "http://3", "http://4"}, semver.MustParse("1.0.0"))

	assert.Equal(t, []models.ChainReport{*r1, *r3}, reports)
	assert.Len(t, results, 4)
	assert.Len(t, Failed(results), 2)
}

func TestResultJSON(t *testing.T) {
	data, err := Result{Peer: "http://a", Err: errUnreachable}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"peer":"http://a","ok":false,"error":"connection refused"}`, string(data))

	data, err = Result{Peer: "http://b"}.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"peer":"http://b","ok":true}`, string(data))
}
