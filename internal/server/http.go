package server

import (
	"strconv"
	"strings"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rabbitpom/rapidl-backend/internal/conf"
	appErrors "github.com/rabbitpom/rapidl-backend/internal/errors"
	"github.com/rabbitpom/rapidl-backend/internal/service"
)

// 提交/重试响应头，余额快照随响应回写，前端不用再查一次
const (
	headerUserID     = "X-User-Id"
	headerSetCredits = "X-Set-Credits"
	headerNextFetch  = "X-Next-Fetch"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Bootstrap, credits *service.CreditService, generation *service.GenerationService) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != "" {
			opts = append(opts, http.Timeout(conf.ParseDuration(c.Server.Http.Timeout, 0)))
		}
	}
	srv := http.NewServer(opts...)
	srv.Handle("/metrics", promhttp.Handler())
	registerRoutes(srv, credits, generation)
	return srv
}

// userID 从网关注入的请求头提取用户标识
func userID(ctx http.Context) (int64, error) {
	raw := ctx.Header().Get(headerUserID)
	if raw == "" {
		return 0, appErrors.ErrUserUnauthenticated("missing %s header", headerUserID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.ErrUserUnauthenticated("invalid %s header", headerUserID)
	}
	return id, nil
}

func registerRoutes(srv *http.Server, credits *service.CreditService, generation *service.GenerationService) {
	r := srv.Route("/v1")

	r.GET("/credits", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		reply, err := credits.GetBalance(ctx, uid)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/credits/grant", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		var req service.GrantRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := credits.Grant(ctx, uid, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/generate", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		var req service.SubmitRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := generation.Submit(ctx, uid, &req)
		if err != nil {
			return err
		}
		writeBalanceHeaders(ctx, reply)
		return ctx.Result(200, reply)
	})

	r.GET("/generated/content", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		reply, err := generation.GetContent(ctx, uid, ctx.Query().Get("job_id"))
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/generated/content", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		var req service.RenameRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		if err := generation.Rename(ctx, uid, &req); err != nil {
			return err
		}
		return ctx.Result(200, map[string]string{"status": "ok"})
	})

	r.DELETE("/generated/content", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		if err := generation.Delete(ctx, uid, ctx.Query().Get("job_id")); err != nil {
			return err
		}
		return ctx.Result(200, map[string]string{"status": "ok"})
	})

	r.POST("/generated/content/retry", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		reply, err := generation.Retry(ctx, uid, ctx.Query().Get("job_id"))
		if err != nil {
			return err
		}
		writeBalanceHeaders(ctx, reply)
		return ctx.Result(200, reply)
	})

	r.GET("/generated/content/batch", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		raw := ctx.Query().Get("job_ids")
		var jobIDs []string
		if raw != "" {
			jobIDs = strings.Split(raw, ",")
		}
		replies, err := generation.GetBatchStatus(ctx, uid, jobIDs)
		if err != nil {
			return err
		}
		return ctx.Result(200, replies)
	})

	r.GET("/generated/list", func(ctx http.Context) error {
		uid, err := userID(ctx)
		if err != nil {
			return err
		}
		page, _ := strconv.Atoi(ctx.Query().Get("page"))
		pageSize, _ := strconv.Atoi(ctx.Query().Get("page_size"))
		reply, err := generation.List(ctx, uid, page, pageSize)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func writeBalanceHeaders(ctx http.Context, reply *service.SubmitReply) {
	if reply.Balance == nil {
		return
	}
	header := ctx.Response().Header()
	header.Set(headerSetCredits, strconv.FormatInt(reply.Balance.Total, 10))
	if !reply.Balance.NextExpiry.IsZero() {
		header.Set(headerNextFetch, strconv.FormatInt(reply.Balance.NextExpiry.Unix(), 10))
	}
}
