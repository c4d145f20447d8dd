package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/domain"
	"github.com/gorianvarbanov/quendoo-mcp/internal/tenant"
	"github.com/gorianvarbanov/quendoo-mcp/internal/upstream"
)

const noKeyMessage = "No Quendoo API key is configured. Call set_api_key first, or sign in with an account that has one."

func (s *Server) handleSetAPIKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apiKey, err := request.RequireString("api_key")
	if err != nil {
		return mcp.NewToolResultError("api_key argument is required"), nil
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return mcp.NewToolResultError("api_key must not be empty"), nil
	}

	key := tenant.FromContext(ctx).CacheKey()
	if err := s.resolver.Store(ctx, key, apiKey); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return mcp.NewToolResultError("Unknown user for this session."), nil
		}
		s.log().Error("store credential failed", zap.Error(err))
		return mcp.NewToolResultError("Failed to store the API key."), nil
	}

	st := s.resolver.Status(key)
	msg := "API key stored for this session."
	if !st.ExpiresAt.IsZero() {
		msg = fmt.Sprintf("API key stored for this session. It expires at %s.", st.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return mcp.NewToolResultText(msg), nil
}

func (s *Server) handleGetAPIKeyStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := tenant.FromContext(ctx).CacheKey()
	st := s.resolver.Status(key)

	out := map[string]any{"configured": st.Present}
	if st.Present {
		out["key_preview"] = st.Preview + "..."
		out["using_global_key"] = st.Global
		if !st.ExpiresAt.IsZero() {
			out["expires_at"] = st.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError("Failed to format status."), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleClearAPIKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := tenant.FromContext(ctx).CacheKey()
	if err := s.resolver.Drop(ctx, key); err != nil {
		s.log().Error("clear credential failed", zap.Error(err))
		return mcp.NewToolResultError("Failed to clear the API key."), nil
	}
	return mcp.NewToolResultText("API key cleared for this session."), nil
}

func (s *Server) handleGetPropertySettings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apiKey, res := s.apiKey(ctx)
	if res != nil {
		return res, nil
	}
	return s.relay(s.quendoo.GetPropertySettings(ctx, apiKey))
}

func (s *Server) handleGetRoomsDetails(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	apiKey, res := s.apiKey(ctx)
	if res != nil {
		return res, nil
	}
	return s.relay(s.quendoo.GetRoomsDetails(ctx, apiKey))
}

func (s *Server) handleGetAvailability(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateFrom, err := request.RequireString("date_from")
	if err != nil {
		return mcp.NewToolResultError("date_from argument is required"), nil
	}
	dateTo, err := request.RequireString("date_to")
	if err != nil {
		return mcp.NewToolResultError("date_to argument is required"), nil
	}
	apiKey, res := s.apiKey(ctx)
	if res != nil {
		return res, nil
	}
	return s.relay(s.quendoo.GetAvailability(ctx, apiKey, dateFrom, dateTo))
}

func (s *Server) handleUpdateAvailability(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("updates")
	if err != nil {
		return mcp.NewToolResultError("updates argument is required"), nil
	}
	var updates []upstream.AvailabilityUpdate
	if err := json.Unmarshal([]byte(raw), &updates); err != nil {
		return mcp.NewToolResultError("updates must be a JSON array of {room_id, date, count, price}"), nil
	}
	if len(updates) == 0 {
		return mcp.NewToolResultError("updates must not be empty"), nil
	}
	apiKey, res := s.apiKey(ctx)
	if res != nil {
		return res, nil
	}
	return s.relay(s.quendoo.UpdateAvailability(ctx, apiKey, updates))
}

func (s *Server) handleGetBookings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateFrom, err := request.RequireString("date_from")
	if err != nil {
		return mcp.NewToolResultError("date_from argument is required"), nil
	}
	dateTo, err := request.RequireString("date_to")
	if err != nil {
		return mcp.NewToolResultError("date_to argument is required"), nil
	}
	apiKey, res := s.apiKey(ctx)
	if res != nil {
		return res, nil
	}
	return s.relay(s.quendoo.GetBookings(ctx, apiKey, dateFrom, dateTo))
}

func (s *Server) handleGetBookingOffers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateFrom, err := request.RequireString("date_from")
	if err != nil {
		return mcp.NewToolResultError("date_from argument is required"), nil
	}
	dateTo, err := request.RequireString("date_to")
	if err != nil {
		return mcp.NewToolResultError("date_to argument is required"), nil
	}
	adults := 2
	if v, ok := request.GetArguments()["adults"]; ok {
		if n, ok := v.(float64); ok && n > 0 {
			adults = int(n)
		}
	}
	apiKey, res := s.apiKey(ctx)
	if res != nil {
		return res, nil
	}
	return s.relay(s.quendoo.GetBookingOffers(ctx, apiKey, dateFrom, dateTo, adults))
}

func (s *Server) handleSendEmail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to, err := request.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError("to argument is required"), nil
	}
	subject, err := request.RequireString("subject")
	if err != nil {
		return mcp.NewToolResultError("subject argument is required"), nil
	}
	body, err := request.RequireString("body")
	if err != nil {
		return mcp.NewToolResultError("body argument is required"), nil
	}

	id := tenant.FromContext(ctx)
	if !id.Authenticated {
		return mcp.NewToolResultError("Sending email requires a signed-in user."), nil
	}
	apiKey, err := s.resolver.ResolveEmailForUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNoCredential) {
			return mcp.NewToolResultError("No email service key is configured for this user."), nil
		}
		s.log().Error("resolve email credential failed", zap.Error(err))
		return mcp.NewToolResultError("Failed to resolve the email service key."), nil
	}

	asHTML := false
	if v, ok := request.GetArguments()["html"]; ok {
		if b, ok := v.(bool); ok {
			asHTML = b
		}
	}

	return s.relay(s.email.Send(ctx, apiKey, upstream.EmailMessage{
		To:      to,
		Subject: subject,
		Body:    body,
		HTML:    asHTML,
	}))
}

func (s *Server) handleMakeVoiceCall(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phone, err := request.RequireString("phone")
	if err != nil {
		return mcp.NewToolResultError("phone argument is required"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required"), nil
	}
	return s.relay(s.voice.MakeCall(ctx, upstream.CallRequest{Phone: phone, Message: message}))
}

// apiKey resolves the Quendoo credential for the calling identity. The second
// return value is non-nil when resolution failed and already holds the tool
// result to return.
func (s *Server) apiKey(ctx context.Context) (string, *mcp.CallToolResult) {
	id := tenant.FromContext(ctx)
	if id.Authenticated {
		key, err := s.resolver.ResolveForUser(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNoCredential) {
				return "", mcp.NewToolResultError(noKeyMessage)
			}
			s.log().Error("resolve credential failed", zap.Error(err))
			return "", mcp.NewToolResultError("Failed to resolve the API key.")
		}
		return key, nil
	}

	key, err := s.resolver.ResolveForTenant(id.TenantKey)
	if err != nil {
		return "", mcp.NewToolResultError(noKeyMessage)
	}
	return key, nil
}

func (s *Server) relay(body []byte, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		s.log().Warn("upstream call failed", zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("Upstream request failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}
