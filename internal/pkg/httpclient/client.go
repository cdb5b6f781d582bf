// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"membermall/internal/pkg/metrics"
)

// maxErrorBody 限制错误响应体的读取长度
const maxErrorBody = 4 << 10

// Client 是一个可追踪的、可注入的 JSON HTTP 客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
}

// NewClient 创建一个新的客户端实例。
// http.Client 不设置 Timeout，超时完全由每次请求传入的 context 控制。
func NewClient(tracer trace.Tracer) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
	}
}

// Request 描述一次出站调用
type Request struct {
	Upstream string // 用于 span 名称和指标标签, e.g. "record-store"
	Method   string
	URL      string
	Header   http.Header
	Body     any // 非 nil 时编码为 JSON
}

// StatusError 表示下游返回了非 2xx 状态码
type StatusError struct {
	Upstream   string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d for %s", e.Upstream, e.StatusCode, e.URL)
}

// Message 尝试从响应体中提取下游给出的错误说明。
// 兼容 {"message": "..."} 与 {"error": {"message": "..."}} 两种格式。
func (e *StatusError) Message() string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return ""
	}
	if payload.Error.Message != "" {
		return payload.Error.Message
	}
	return payload.Message
}

// StatusCode 返回错误链中 StatusError 的状态码，不存在时返回 0。
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Do 发送请求并把 2xx 响应体解码到 out（out 可为 nil）。
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid url %q", req.URL)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	spanName := fmt.Sprintf("call-%s", req.Upstream)
	if req.Upstream == "" {
		spanName = fmt.Sprintf("call-%s", strings.Split(parsedURL.Host, ":")[0])
	}
	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			span.RecordError(err)
			return errors.Wrap(err, "marshal request body")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), body)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "build request")
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	span.SetAttributes(
		attribute.String("http.url", parsedURL.Redacted()),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(req.Upstream, "network_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "call %s", req.Upstream)
	}
	defer resp.Body.Close()

	metrics.UpstreamRequests.WithLabelValues(req.Upstream, strconv.Itoa(resp.StatusCode)).Inc()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{
			Upstream:   req.Upstream,
			URL:        parsedURL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       errBody,
		}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		span.RecordError(err)
		return errors.Wrapf(err, "decode %s response", req.Upstream)
	}
	return nil
}

// Endpoint 解析下游服务的基础地址。
// 静态配置与 nacos 服务发现都实现了该接口。
type Endpoint interface {
	BaseURL(ctx context.Context) (string, error)
}

// StaticEndpoint 是一个固定地址
type StaticEndpoint string

// ErrNoEndpoint 表示下游地址未配置
var ErrNoEndpoint = errors.New("endpoint not configured")

func (s StaticEndpoint) BaseURL(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoEndpoint
	}
	return strings.TrimRight(string(s), "/"), nil
}
