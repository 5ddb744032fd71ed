package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/careline/medrag/internal/ai"
	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/embedstore"
	"github.com/careline/medrag/internal/handler"
	"github.com/careline/medrag/internal/knowledge"
	"github.com/careline/medrag/internal/middleware"
	"github.com/careline/medrag/internal/optimize"
	"github.com/careline/medrag/internal/retrieval"
	"github.com/careline/medrag/internal/semantic"
)

type apiEnvelope struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func setupRouter(t *testing.T) (http.Handler, *optimize.Optimizer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := embedstore.New(ai.NewLocalProvider(0), cache.NewMemory(2048, time.Hour), embedstore.Config{})
	index := knowledge.NewIndex(store, cache.Noop{}, knowledge.Config{MinSimilarity: 0.05})
	require.NotZero(t, knowledge.Seed(context.Background(), index))
	engine := semantic.New(index, cache.NewMemory(256, time.Hour), semantic.Config{MinSimilarity: 0.05})
	router := retrieval.New(nil, engine, cache.NewMemory(256, time.Hour), nil, retrieval.Config{EnableLocal: true})
	optimizer := optimize.New(router, optimize.Config{})
	t.Cleanup(optimizer.Close)

	deps := handler.RouterDeps{
		Query:        handler.NewQueryHandler(optimizer),
		Search:       handler.NewSearchHandler(engine),
		Knowledge:    handler.NewKnowledgeHandler(index, nil, nil),
		AdminEnabled: true,
	}

	webEngine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return webEngine, optimizer
}
