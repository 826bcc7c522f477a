package main

import (
	"log"

	_ "github.com/relaycrm/relaycrm/docs" // Import generated docs
	"github.com/relaycrm/relaycrm/internal/api"
)

// @title RelayCRM Automation API
// @version 1.0
// @description Automation and webhook event pipeline for RelayCRM: trigger-condition-action rules over CRM events, signed inbound webhook ingestion, and outbound delivery logging.
// @description
// @description ## Features
// @description - **Automation Rules**: trigger/condition/action policies evaluated in priority order per event
// @description - **Inbound Webhooks**: HMAC-verified, IP-allowlisted, rate-limited ingestion with per-resource field allowlists
// @description - **Outbound Webhooks**: signed delivery with append-only delivery history
// @description - **Audit Trail**: one automation log row per matched rule evaluation

// @contact.name API Support
// @contact.email support@relaycrm.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey TenantAuth
// @in header
// @name X-User-ID
// @description Tenant identity header injected by the auth proxy

func main() {
	srv := api.NewServer()
	if err := srv.Serve(); err != nil {
		log.Fatalf("api server stopped: %v", err)
	}
}
