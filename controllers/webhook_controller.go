package controller

import (
	"log"

	"coldreach/models"
	"coldreach/worker"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type WebhookController struct {
	DB         *gorm.DB
	Reconciler *worker.Reconciler
	Logger     *log.Logger
}

func NewWebhookController(db *gorm.DB, reconciler *worker.Reconciler, logger *log.Logger) *WebhookController {
	return &WebhookController{DB: db, Reconciler: reconciler, Logger: logger}
}

type webhookEventInput struct {
	Type       string `json:"type"` // REPLY or BOUNCE
	LeadID     uint   `json:"lead_id"`
	CampaignID uint   `json:"campaign_id"`
}

// HandleEvent applies an externally-detected reply or bounce to one
// enrollment. Delivery is at-least-once; replays are no-ops.
func (wc *WebhookController) HandleEvent(c *fiber.Ctx) error {
	var input webhookEventInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if input.LeadID == 0 || input.CampaignID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lead_id and campaign_id are required",
		})
	}

	var status string
	switch input.Type {
	case "REPLY":
		status = models.EnrollmentStatusReplied
	case "BOUNCE":
		status = models.EnrollmentStatusBounced
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "type must be REPLY or BOUNCE",
		})
	}

	updated, err := wc.Reconciler.ForceTransition(input.CampaignID, input.LeadID, status)
	if err != nil {
		wc.Logger.Printf("Webhook transition failed for lead %d: %v", input.LeadID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to apply event",
		})
	}

	return c.JSON(fiber.Map{"updated": updated})
}
