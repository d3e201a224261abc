// Package middleware provides HTTP middleware for identity, logging, and request processing.
package middleware

import (
	"context"

	pkglog "github.com/cuongccna/ProjectBotTrading/pkg/log"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// Reviewer identity headers. The review console fronts this service and
// forwards the authenticated reviewer on every call; this middleware only
// extracts, it does not authenticate.
const (
	// HeaderReviewerID carries the reviewer user identifier
	HeaderReviewerID = "X-Reviewer-Id"
	// HeaderReviewerRole carries the reviewer role (junior_analyst/analyst/...)
	HeaderReviewerRole = "X-Reviewer-Role"
	// HeaderRequestID carries an upstream request ID, generated when absent
	HeaderRequestID = "X-Request-ID"
)

// Identity 返回一个 HTTP 身份提取中间件
// 从请求头中提取审核员 ID 和角色，注入 Request Context
//
// 日志输出示例:
//
//	🔗 Reviewer alice (senior_analyst) | RequestID: mgrn0zfqda
//
// 角色权限校验在 biz 层执行，这里只负责提取和传递
func Identity(logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			var (
				requestID    string
				reviewerID   string
				reviewerRole string
			)

			// 提取请求头
			if tr, ok := transport.FromServerContext(ctx); ok {
				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					requestID = httpReq.Header.Get(HeaderRequestID)
					reviewerID = httpReq.Header.Get(HeaderReviewerID)
					reviewerRole = httpReq.Header.Get(HeaderReviewerRole)
				}
			}

			if requestID == "" {
				requestID = pkglog.GenerateRequestID()
			}

			// 将审核员信息注入 Context，供日志和 service 层使用
			ctx = pkglog.WithRequestContext(ctx, requestID, reviewerID, reviewerRole)

			if reviewerID != "" {
				logger.API(
					"Reviewer "+reviewerID+" ("+reviewerRole+") | RequestID: "+requestID,
					"reviewer_id", reviewerID,
					"reviewer_role", reviewerRole,
					"request_id", requestID,
				)
			}

			return handler(ctx, req)
		}
	}
}
