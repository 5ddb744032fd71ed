package optimize

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/retrieval"
)

type fakeRetriever struct {
	calls atomic.Int64
	block chan struct{}
}

func (f *fakeRetriever) Retrieve(ctx context.Context, req retrieval.Request) (*model.IntegratedResponse, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &model.IntegratedResponse{Answer: "resposta: " + req.Text, QualityScore: 0.8}, nil
}

func TestDoDeduplicatesConcurrentRequests(t *testing.T) {
	retriever := &fakeRetriever{block: make(chan struct{})}
	optimizer := New(retriever, Config{})
	defer optimizer.Close()

	const callers = 6
	var wg sync.WaitGroup
	answers := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rsp, err := optimizer.Do(context.Background(), retrieval.Request{Text: "dose de rifampicina"})
			require.NoError(t, err)
			answers[i] = rsp.Answer
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(retriever.block)
	wg.Wait()

	require.EqualValues(t, 1, retriever.calls.Load(), "identical concurrent requests must share one execution")
	for _, answer := range answers {
		require.Equal(t, answers[0], answer)
	}
	require.GreaterOrEqual(t, optimizer.Snapshot().Deduplicated, int64(callers-1))
}

func TestSubmitBatchesAndAnswersIndividually(t *testing.T) {
	retriever := &fakeRetriever{}
	optimizer := New(retriever, Config{BatchSize: 3, BatchInterval: 50 * time.Millisecond})
	defer optimizer.Close()

	texts := []string{"dose de rifampicina", "efeitos da clofazimina", "dapsona na gravidez"}
	var wg sync.WaitGroup
	answers := make([]string, len(texts))
	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			rsp, err := optimizer.Submit(context.Background(), retrieval.Request{Text: text})
			require.NoError(t, err)
			answers[i] = rsp.Answer
		}(i, text)
	}
	wg.Wait()

	for i, text := range texts {
		require.Equal(t, "resposta: "+text, answers[i], "each caller must receive its own answer")
	}
	require.EqualValues(t, 3, retriever.calls.Load())
}

func TestSubmitFlushesPartialBatchOnTimer(t *testing.T) {
	retriever := &fakeRetriever{}
	optimizer := New(retriever, Config{BatchSize: 5, BatchInterval: 20 * time.Millisecond})
	defer optimizer.Close()

	rsp, err := optimizer.Submit(context.Background(), retrieval.Request{Text: "pergunta isolada em lote"})
	require.NoError(t, err)
	require.Equal(t, "resposta: pergunta isolada em lote", rsp.Answer)
	require.EqualValues(t, 1, optimizer.Snapshot().BatchesServed)
}

func TestPrefetchServesFollowUps(t *testing.T) {
	retriever := &fakeRetriever{}
	optimizer := New(retriever, Config{})
	defer optimizer.Close()

	optimizer.prefetchRelated(retrieval.Request{Text: "rifampicina", Persona: "ga"})
	require.Positive(t, optimizer.Snapshot().Prefetched)
	before := retriever.calls.Load()

	rsp, err := optimizer.Do(context.Background(), retrieval.Request{Text: "rifampicina", Persona: "ga"})
	require.NoError(t, err)
	require.NotNil(t, rsp)
	require.Equal(t, before, retriever.calls.Load(), "prefetched answer must not hit the retriever again")
	require.EqualValues(t, 1, optimizer.Snapshot().PrefetchHits)
}

func TestTuneWidensWindowUnderDuplication(t *testing.T) {
	optimizer := New(&fakeRetriever{}, Config{})
	defer optimizer.Close()

	optimizer.requests.Store(100)
	optimizer.deduplicated.Store(40)
	optimizer.Tune(context.Background())
	require.Greater(t, time.Duration(optimizer.batchInterval.Load()), defaultBatchInterval)

	optimizer.deduplicated.Store(0)
	optimizer.Tune(context.Background())
	require.Equal(t, int64(defaultBatchInterval), optimizer.batchInterval.Load())
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantOpt string
		check   func(t *testing.T, out string)
	}{
		{
			name:    "intent phrase appends retrieval terms",
			in:      "posso tomar o remédio junto com anticoncepcional",
			wantOpt: OptIntent,
			check: func(t *testing.T, out string) {
				require.Contains(t, out, "interação medicamentosa")
			},
		},
		{
			name: "long query keeps content words",
			in: "olá eu gostaria de saber se por acaso existe algum problema em tomar " +
				"a medicação da hanseníase durante o período da noite",
			wantOpt: OptShortened,
			check: func(t *testing.T, out string) {
				require.LessOrEqual(t, len(splitWords(out)), keepContentTop)
				require.Contains(t, out, "hanseníase")
				require.NotContains(t, out, "olá")
			},
		},
		{
			name:    "short query gets expansion terms",
			in:      "rifampicina",
			wantOpt: OptExpanded,
			check: func(t *testing.T, out string) {
				require.Greater(t, len(splitWords(out)), 1)
			},
		},
		{
			name:    "normal query untouched",
			in:      "dose de rifampicina para adultos",
			wantOpt: OptNone,
			check: func(t *testing.T, out string) {
				require.Equal(t, "dose de rifampicina para adultos", out)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, opt := Rewrite(tt.in)
			require.Equal(t, tt.wantOpt, opt)
			require.NotEmpty(t, out)
			tt.check(t, out)
		})
	}
}

func splitWords(s string) []string {
	return strings.Fields(s)
}
