package mcptools

import (
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/gorianvarbanov/quendoo-mcp/internal/credentials"
	"github.com/gorianvarbanov/quendoo-mcp/internal/upstream"
)

// Server exposes credential management and Quendoo operations as MCP tools.
// Tool handlers read the caller identity from the request context, which the
// HTTP middleware resolves before the MCP transport takes over.
type Server struct {
	resolver *credentials.Resolver
	quendoo  *upstream.QuendooClient
	email    *upstream.EmailClient
	voice    *upstream.VoiceClient
	logger   *zap.Logger
	mcp      *server.MCPServer
}

func NewServer(
	resolver *credentials.Resolver,
	quendoo *upstream.QuendooClient,
	email *upstream.EmailClient,
	voice *upstream.VoiceClient,
	logger *zap.Logger,
) *Server {
	s := &Server{
		resolver: resolver,
		quendoo:  quendoo,
		email:    email,
		voice:    voice,
		logger:   logger,
		mcp: server.NewMCPServer(
			"quendoo-mcp",
			"1.0.0",
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// Handler returns the streamable HTTP transport for mounting in the router.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) registerTools() {
	setKeyTool := mcp.NewTool("set_api_key",
		mcp.WithDescription("Store the Quendoo API key for this session. The key is cached for 24 hours and used by all property tools."),
		mcp.WithString("api_key",
			mcp.Required(),
			mcp.Description("The Quendoo PMS API key"),
		),
	)
	s.mcp.AddTool(setKeyTool, s.handleSetAPIKey)

	statusTool := mcp.NewTool("get_api_key_status",
		mcp.WithDescription("Check whether a Quendoo API key is configured for this session, without revealing the key."),
	)
	s.mcp.AddTool(statusTool, s.handleGetAPIKeyStatus)

	clearTool := mcp.NewTool("clear_api_key",
		mcp.WithDescription("Remove the cached Quendoo API key for this session."),
	)
	s.mcp.AddTool(clearTool, s.handleClearAPIKey)

	propertyTool := mcp.NewTool("get_property_settings",
		mcp.WithDescription("Get the property configuration from Quendoo PMS."),
	)
	s.mcp.AddTool(propertyTool, s.handleGetPropertySettings)

	roomsTool := mcp.NewTool("get_rooms_details",
		mcp.WithDescription("Get room types and their details from Quendoo PMS."),
	)
	s.mcp.AddTool(roomsTool, s.handleGetRoomsDetails)

	availabilityTool := mcp.NewTool("get_availability",
		mcp.WithDescription("Get room availability and prices for a date range."),
		mcp.WithString("date_from", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("date_to", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
	)
	s.mcp.AddTool(availabilityTool, s.handleGetAvailability)

	updateTool := mcp.NewTool("update_availability",
		mcp.WithDescription("Update room inventory counts or prices for specific dates."),
		mcp.WithString("updates",
			mcp.Required(),
			mcp.Description(`JSON array of updates: [{"room_id","date","count","price"}]`),
		),
	)
	s.mcp.AddTool(updateTool, s.handleUpdateAvailability)

	bookingsTool := mcp.NewTool("get_bookings",
		mcp.WithDescription("List bookings arriving in a date range."),
		mcp.WithString("date_from", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("date_to", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
	)
	s.mcp.AddTool(bookingsTool, s.handleGetBookings)

	offersTool := mcp.NewTool("get_booking_offers",
		mcp.WithDescription("Get bookable offers for a stay."),
		mcp.WithString("date_from", mcp.Required(), mcp.Description("Check-in date, YYYY-MM-DD")),
		mcp.WithString("date_to", mcp.Required(), mcp.Description("Check-out date, YYYY-MM-DD")),
		mcp.WithNumber("adults", mcp.Description("Number of adults, default 2")),
	)
	s.mcp.AddTool(offersTool, s.handleGetBookingOffers)

	emailTool := mcp.NewTool("send_email",
		mcp.WithDescription("Send an email through the Quendoo email service. Requires a signed-in user with an email service key."),
		mcp.WithString("to", mcp.Required(), mcp.Description("Recipient address")),
		mcp.WithString("subject", mcp.Required(), mcp.Description("Subject line")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Message body")),
		mcp.WithBoolean("html", mcp.Description("Send the body as HTML")),
	)
	s.mcp.AddTool(emailTool, s.handleSendEmail)

	voiceTool := mcp.NewTool("make_voice_call",
		mcp.WithDescription("Place an automated voice call through the Quendoo automation service."),
		mcp.WithString("phone", mcp.Required(), mcp.Description("Phone number in international format")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to read to the callee")),
	)
	s.mcp.AddTool(voiceTool, s.handleMakeVoiceCall)
}

func (s *Server) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
