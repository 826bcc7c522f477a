package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/metrics"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"go.uber.org/zap"
)

// Gateway sentinel errors, mapped to HTTP statuses by the handler layer.
var (
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("ip address not allowed")
)

// RequestError is a 400-class failure in the inbound payload.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func newRequestError(format string, args ...interface{}) *RequestError {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// ConfigStore provides the webhook config operations the gateway needs.
type ConfigStore interface {
	GetInboundConfig(ctx context.Context, webhookID string) (*models.WebhookConfig, error)
	TouchWebhookTriggered(ctx context.Context, webhookID string) error
	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
}

// CRMStore provides the mutations an inbound event may perform. Ownership
// scoping is the store's responsibility; the gateway passes the webhook
// owner's tenant id on every call.
type CRMStore interface {
	CreateLead(ctx context.Context, userID string, fields map[string]interface{}) (string, error)
	UpdateLeadFields(ctx context.Context, userID, leadID string, fields map[string]interface{}) error
	CreateContact(ctx context.Context, contact *models.Contact) error
	CreateActivity(ctx context.Context, activity *models.Activity) error
}

// EventDispatcher re-enters processed inbound mutations into the automation
// pipeline without blocking the gateway response.
type EventDispatcher interface {
	DispatchDetached(event models.TriggerEvent)
}

// InboundRequest is one inbound webhook call after HTTP decoding.
type InboundRequest struct {
	WebhookID string
	Signature string
	ClientIP  string
	Body      []byte
}

// InboundResult is the acknowledgment returned to the caller on success.
type InboundResult struct {
	Message string                 `json:"message"`
	Result  map[string]interface{} `json:"result,omitempty"`
}

// inboundPayload is the decoded request body.
type inboundPayload struct {
	Event string                 `json:"event"`
	Type  string                 `json:"type"`
	Data  map[string]interface{} `json:"data"`
}

func (p inboundPayload) eventType() string {
	if p.Event != "" {
		return p.Event
	}
	return p.Type
}

// Gateway authenticates and processes third-party inbound webhook calls.
// Each request walks a fixed sequence: rate limit, config lookup, IP check,
// signature check, payload parse, event validation, allowlisted mutation,
// delivery logging. Any failed step short-circuits; delivery rows exist only
// for authenticated requests.
type Gateway struct {
	configs    ConfigStore
	crm        CRMStore
	dispatcher EventDispatcher
	limiter    Limiter
	clock      clock.Clock
	logger     logging.Logger
}

// NewGateway wires the inbound processing pipeline. dispatcher may be nil to
// disable automation re-entry.
func NewGateway(configs ConfigStore, crm CRMStore, dispatcher EventDispatcher, limiter Limiter, clk clock.Clock, logger logging.Logger) *Gateway {
	return &Gateway{
		configs:    configs,
		crm:        crm,
		dispatcher: dispatcher,
		limiter:    limiter,
		clock:      clk,
		logger:     logger.With(zap.String("component", "inbound_gateway")),
	}
}

// Process runs one inbound request through the gateway. The returned error is
// one of the sentinel errors, a *RequestError, or an internal failure.
func (g *Gateway) Process(ctx context.Context, req InboundRequest) (*InboundResult, error) {
	allowed, err := g.limiter.Allow(ctx, req.ClientIP)
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		metrics.InboundRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	if req.WebhookID == "" {
		metrics.InboundRequestsTotal.WithLabelValues("unauthorized").Inc()
		return nil, ErrUnauthorized
	}
	config, err := g.configs.GetInboundConfig(ctx, req.WebhookID)
	if err != nil {
		metrics.InboundRequestsTotal.WithLabelValues("unauthorized").Inc()
		return nil, ErrUnauthorized
	}

	if len(config.IPAllowlist) > 0 && !ipAllowed(req.ClientIP, config.IPAllowlist) {
		metrics.InboundRequestsTotal.WithLabelValues("forbidden").Inc()
		g.logger.Warn("inbound request from disallowed ip",
			zap.String("webhook_id", config.ID),
			zap.String("client_ip", req.ClientIP),
		)
		return nil, ErrForbidden
	}

	if config.Secret != nil && *config.Secret != "" {
		if req.Signature == "" || !Verify(req.Body, req.Signature, *config.Secret) {
			metrics.InboundRequestsTotal.WithLabelValues("unauthorized").Inc()
			g.logger.Warn("inbound signature verification failed",
				zap.String("webhook_id", config.ID),
			)
			return nil, ErrUnauthorized
		}
	}

	var payload inboundPayload
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		metrics.InboundRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, newRequestError("malformed JSON body")
	}
	eventType := payload.eventType()
	if eventType == "" {
		metrics.InboundRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, newRequestError("missing event field")
	}
	if len(config.Events) > 0 && !contains(config.Events, eventType) {
		metrics.InboundRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, newRequestError("event %q not subscribed", eventType)
	}

	start := g.clock.Now()
	result, processErr := g.process(ctx, config, eventType, payload.Data)
	durationMs := g.clock.Now().Sub(start).Milliseconds()

	g.recordOutcome(ctx, config, eventType, req.Body, processErr, durationMs)

	if processErr != nil {
		var reqErr *RequestError
		if errors.As(processErr, &reqErr) {
			metrics.InboundRequestsTotal.WithLabelValues("invalid").Inc()
		} else {
			metrics.InboundRequestsTotal.WithLabelValues("failed").Inc()
		}
		return nil, processErr
	}

	metrics.InboundRequestsTotal.WithLabelValues("success").Inc()
	return result, nil
}

// process performs the single CRM mutation for the event. Unknown events are
// acknowledged without mutating anything; exploratory integrators get liveness,
// not errors.
func (g *Gateway) process(ctx context.Context, config *models.WebhookConfig, eventType string, data map[string]interface{}) (*InboundResult, error) {
	switch eventType {
	case "lead.create":
		return g.createLead(ctx, config, data)
	case "lead.update":
		return g.updateLead(ctx, config, data)
	case "contact.create":
		return g.createContact(ctx, config, data)
	case "activity.log":
		return g.logActivity(ctx, config, data)
	default:
		return &InboundResult{Message: "event_received"}, nil
	}
}

func (g *Gateway) createLead(ctx context.Context, config *models.WebhookConfig, data map[string]interface{}) (*InboundResult, error) {
	fields := FilterFields(data, leadFieldAllowlist)
	if name, _ := fields["business_name"].(string); name == "" {
		return nil, newRequestError("business_name is required")
	}

	leadID, err := g.crm.CreateLead(ctx, config.UserID, fields)
	if err != nil {
		return nil, fmt.Errorf("create lead: %w", err)
	}

	g.redispatch(config.UserID, models.TriggerLeadCreated, leadID, fields)
	return &InboundResult{
		Message: "lead created",
		Result:  map[string]interface{}{"lead_id": leadID},
	}, nil
}

func (g *Gateway) updateLead(ctx context.Context, config *models.WebhookConfig, data map[string]interface{}) (*InboundResult, error) {
	leadID, _ := data["id"].(string)
	if leadID == "" {
		return nil, newRequestError("lead id is required")
	}

	fields := FilterFields(data, leadFieldAllowlist)
	if len(fields) == 0 {
		return nil, newRequestError("no updatable fields in payload")
	}

	if err := g.crm.UpdateLeadFields(ctx, config.UserID, leadID, fields); err != nil {
		return nil, fmt.Errorf("update lead: %w", err)
	}

	g.redispatch(config.UserID, models.TriggerLeadUpdated, leadID, fields)
	return &InboundResult{
		Message: "lead updated",
		Result:  map[string]interface{}{"lead_id": leadID},
	}, nil
}

func (g *Gateway) createContact(ctx context.Context, config *models.WebhookConfig, data map[string]interface{}) (*InboundResult, error) {
	fields := FilterFields(data, contactFieldAllowlist)

	businessID, _ := fields["business_id"].(string)
	firstName, _ := fields["first_name"].(string)
	lastName, _ := fields["last_name"].(string)
	if businessID == "" {
		return nil, newRequestError("business_id is required")
	}
	if firstName == "" || lastName == "" {
		return nil, newRequestError("first_name and last_name are required")
	}

	contact := &models.Contact{
		ID:         uuid.New().String(),
		UserID:     config.UserID,
		BusinessID: businessID,
		FirstName:  firstName,
		LastName:   lastName,
	}
	if email, _ := fields["email"].(string); email != "" {
		contact.Email = &email
	}
	if phone, _ := fields["phone"].(string); phone != "" {
		contact.Phone = &phone
	}
	if position, _ := fields["position"].(string); position != "" {
		contact.Position = &position
	}

	if err := g.crm.CreateContact(ctx, contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return &InboundResult{
		Message: "contact created",
		Result:  map[string]interface{}{"contact_id": contact.ID},
	}, nil
}

func (g *Gateway) logActivity(ctx context.Context, config *models.WebhookConfig, data map[string]interface{}) (*InboundResult, error) {
	fields := FilterFields(data, activityFieldAllowlist)

	businessID, _ := fields["business_id"].(string)
	activityType, _ := fields["activity_type"].(string)
	if businessID == "" {
		return nil, newRequestError("business_id is required")
	}
	if activityType == "" {
		return nil, newRequestError("activity_type is required")
	}

	activity := &models.Activity{
		ID:           uuid.New().String(),
		UserID:       config.UserID,
		BusinessID:   businessID,
		ActivityType: activityType,
	}
	if description, _ := fields["description"].(string); description != "" {
		activity.Description = &description
	}
	if metadata, ok := fields["metadata"]; ok {
		if serialized, err := json.Marshal(metadata); err == nil {
			activity.Metadata = serialized
		}
	}

	if err := g.crm.CreateActivity(ctx, activity); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return &InboundResult{
		Message: "activity logged",
		Result:  map[string]interface{}{"activity_id": activity.ID},
	}, nil
}

// redispatch feeds the mutation back into the automation pipeline so rules
// react to webhook-originated changes the same way they react to live ones.
func (g *Gateway) redispatch(userID string, triggerType models.TriggerType, leadID string, fields map[string]interface{}) {
	if g.dispatcher == nil {
		return
	}

	data := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		data[k] = v
	}
	data["business_id"] = leadID

	g.dispatcher.DispatchDetached(models.TriggerEvent{
		Type:   triggerType,
		Source: models.SourceWebhook,
		UserID: userID,
		Data:   data,
	})
}

// recordOutcome touches the config and appends the delivery row. Only
// authenticated requests reach this point; auth failures leave no trace in the
// delivery log.
func (g *Gateway) recordOutcome(ctx context.Context, config *models.WebhookConfig, eventType string, body []byte, processErr error, durationMs int64) {
	if err := g.configs.TouchWebhookTriggered(ctx, config.ID); err != nil {
		g.logger.Warn("failed to touch webhook config",
			zap.String("webhook_id", config.ID),
			zap.Error(err),
		)
	}

	status := models.DeliverySuccess
	if processErr != nil {
		status = models.DeliveryFailed
	}

	delivery := &models.WebhookDelivery{
		ID:         uuid.New().String(),
		WebhookID:  &config.ID,
		EventType:  eventType,
		Payload:    json.RawMessage(body),
		Status:     status,
		DurationMs: durationMs,
	}
	if err := g.configs.CreateDelivery(ctx, delivery); err != nil {
		g.logger.Error("failed to record inbound delivery",
			zap.String("webhook_id", config.ID),
			zap.Error(err),
		)
	}
}

func ipAllowed(ip string, allowlist []string) bool {
	return contains(allowlist, ip)
}

func contains(set []string, member string) bool {
	for _, s := range set {
		if s == member {
			return true
		}
	}
	return false
}
