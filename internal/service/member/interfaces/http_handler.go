package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"membermall/internal/pkg/logger"
	"membermall/internal/service/member/application"
	"membermall/internal/service/member/domain"
	"membermall/internal/service/member/infrastructure/session"
)

// MallHandler 是会员商城的 BFF 接口
type MallHandler struct {
	auth     *application.AuthService
	profile  *application.ProfileService
	catalog  *application.CatalogService
	redeem   *application.RedemptionService
	sessions session.Binder
}

func NewMallHandler(auth *application.AuthService, profile *application.ProfileService, catalog *application.CatalogService, redeem *application.RedemptionService, sessions session.Binder) *MallHandler {
	return &MallHandler{auth: auth, profile: profile, catalog: catalog, redeem: redeem, sessions: sessions}
}

// RegisterRoutes 在 chi 路由上注册所有接口
func (h *MallHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(extractTrace)

		r.Post("/auth/identity", h.handleCheckIdentity)
		r.Post("/auth/activate", h.handleActivate)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)

		r.Get("/member", h.handleProfile)
		r.Post("/member/refresh", h.handleResync)
		r.Put("/member/password", h.handleChangePassword)
		r.Put("/member/phone", h.handleChangePhone)

		r.Get("/products", h.handleProducts)

		r.Post("/redemptions/quote", h.handleQuote)
		r.Post("/redemptions", h.handleRedeem)
	})
}

// extractTrace 从请求头恢复上游的 trace 上下文
func extractTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type identityBody struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Number string `json:"number"`
}

func (b identityBody) identity() domain.Identity {
	return domain.Identity{Name: b.Name, Email: b.Email, Number: b.Number}
}

type activateBody struct {
	identityBody
	Password string `json:"password"`
	Confirm  string `json:"confirmPassword"`
}

type loginBody struct {
	identityBody
	Password string `json:"password"`
}

type changePasswordBody struct {
	Current string `json:"currentPassword"`
	Next    string `json:"newPassword"`
	Confirm string `json:"confirmPassword"`
}

type changePhoneBody struct {
	Phone string `json:"phone"`
}

func (h *MallHandler) handleCheckIdentity(w http.ResponseWriter, r *http.Request) {
	var body identityBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.auth.CheckIdentity(r.Context(), body.identity())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *MallHandler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var body activateBody
	if !decode(w, r, &body) {
		return
	}
	m, err := h.auth.Activate(r.Context(), h.sessions.Bind(w, r), application.ActivateRequest{
		Identity: body.identity(),
		Password: body.Password,
		Confirm:  body.Confirm,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MallHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !decode(w, r, &body) {
		return
	}
	m, err := h.auth.Login(r.Context(), h.sessions.Bind(w, r), application.LoginRequest{
		Identity: body.identity(),
		Password: body.Password,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MallHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), h.sessions.Bind(w, r)); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MallHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	m, err := h.profile.Profile(r.Context(), h.sessions.Bind(w, r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MallHandler) handleResync(w http.ResponseWriter, r *http.Request) {
	m, err := h.profile.Resync(r.Context(), h.sessions.Bind(w, r))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MallHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var body changePasswordBody
	if !decode(w, r, &body) {
		return
	}
	err := h.profile.ChangePassword(r.Context(), h.sessions.Bind(w, r), application.ChangePasswordRequest{
		Current: body.Current,
		Next:    body.Next,
		Confirm: body.Confirm,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "密码修改成功"})
}

func (h *MallHandler) handleChangePhone(w http.ResponseWriter, r *http.Request) {
	var body changePhoneBody
	if !decode(w, r, &body) {
		return
	}
	m, err := h.profile.ChangePhone(r.Context(), h.sessions.Bind(w, r), body.Phone)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleProducts 加载目录。已登录时先尝试同步一次余额，失败不影响目录展示。
func (h *MallHandler) handleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Bind(w, r)

	m, err := sess.Load(ctx)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if m != nil {
		if fresh, err := h.profile.Resync(ctx, sess); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("member", m.Number).Msg("Balance resync on catalog load failed")
		} else {
			m = fresh
		}
	}

	products, err := h.catalog.Load(ctx, m, r.URL.Query().Get("q"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *MallHandler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req application.RedeemRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := h.redeem.Quote(r.Context(), h.sessions.Bind(w, r), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *MallHandler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req application.RedeemRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.redeem.Redeem(r.Context(), h.sessions.Bind(w, r), req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// errorResponse 是所有失败响应的结构
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Support bool   `json:"support,omitempty"`
}

// 面向会员的提示文案
const (
	msgNotSignedIn       = "请先登录。"
	msgIdentityMismatch  = "会员信息不匹配，请检查姓名与邮箱。"
	msgNotFound          = "未找到该会员。"
	msgWrongPassword     = "密码错误。"
	msgInvalidInput      = "请检查输入内容。"
	msgInvalidAmount     = "请输入有效金额。"
	msgInsufficientCash  = "积分不足。"
	msgInsufficientDisc  = "折扣积分不足。"
	msgProductNotFound   = "商品不存在或已下架。"
	msgInProgress        = "上一笔兑换仍在处理中，请稍后。"
	msgContactSupport    = "兑换成功但邮件发送失败，请联系客服。"
	msgSettlementSupport = "兑换已出券但余额更新失败，请联系客服。"
	msgRedeemFailed      = "兑换失败，系统繁忙，请稍后重试。"
	msgNetwork           = "网络错误，请稍后再试。"
	msgNotConfigured     = "服务暂不可用，请联系管理员。"
	msgInternal          = "系统繁忙，请稍后重试。"
)

// statusOf 把领域错误映射为 HTTP 状态码与会员可读的提示
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotSignedIn):
		return http.StatusUnauthorized, msgNotSignedIn
	case errors.Is(err, domain.ErrWrongPassword):
		return http.StatusUnauthorized, msgWrongPassword
	case errors.Is(err, domain.ErrIdentityMismatch):
		return http.StatusForbidden, msgIdentityMismatch
	case errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusNotFound, msgNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound, msgProductNotFound
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, msgInvalidAmount
	case errors.Is(err, domain.ErrPasswordRequired),
		errors.Is(err, domain.ErrPasswordTooShort),
		errors.Is(err, domain.ErrPasswordMismatch),
		errors.Is(err, domain.ErrPhoneRequired),
		errors.Is(err, domain.ErrPhoneInvalid):
		return http.StatusBadRequest, msgInvalidInput
	case errors.Is(err, domain.ErrInsufficientCash):
		return http.StatusUnprocessableEntity, msgInsufficientCash
	case errors.Is(err, domain.ErrInsufficientDiscount):
		return http.StatusUnprocessableEntity, msgInsufficientDisc
	case errors.Is(err, domain.ErrRedemptionInProgress):
		return http.StatusConflict, msgInProgress
	case errors.Is(err, domain.ErrNotificationFailed):
		return http.StatusBadGateway, msgContactSupport
	case errors.Is(err, domain.ErrSettlementIncomplete):
		return http.StatusBadGateway, msgSettlementSupport
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusServiceUnavailable, msgNotConfigured
	case errors.Is(err, domain.ErrCouponIssueFailed),
		errors.Is(err, domain.ErrRecordStore),
		errors.Is(err, domain.ErrVerificationFailed),
		errors.Is(err, domain.ErrActivationIncomplete):
		return http.StatusBadGateway, msgRedeemFailed
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, msgNetwork
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, errorResponse{
		Error:   err.Error(),
		Message: msg,
		Support: domain.NeedsSupport(err),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Message: msgInvalidInput})
		return false
	}
	return true
}
