package controller

import (
	"log"
	"strings"

	"coldreach/models"
	"coldreach/worker"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// trackingPixel is a transparent 1x1 GIF.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type TrackingController struct {
	DB         *gorm.DB
	Reconciler *worker.Reconciler
	Logger     *log.Logger
}

func NewTrackingController(db *gorm.DB, reconciler *worker.Reconciler, logger *log.Logger) *TrackingController {
	return &TrackingController{DB: db, Reconciler: reconciler, Logger: logger}
}

// resolveToken finds the EMAIL_SENT event the token was minted for.
func (tc *TrackingController) resolveToken(token string) (*models.Event, bool) {
	var sent models.Event
	err := tc.DB.Where("token = ? AND type = ?", token, models.EventEmailSent).
		First(&sent).Error
	return &sent, err == nil
}

// Open records an email-open event and always serves the pixel, even for
// unknown tokens, so broken tracking never renders a broken image.
func (tc *TrackingController) Open(c *fiber.Ctx) error {
	if sent, ok := tc.resolveToken(c.Params("token")); ok {
		event := models.Event{
			Type:       models.EventEmailOpened,
			CampaignID: sent.CampaignID,
			LeadID:     sent.LeadID,
			Metadata: map[string]string{
				"user_agent": c.Get("User-Agent"),
			},
		}
		if err := tc.DB.Create(&event).Error; err != nil {
			tc.Logger.Printf("Failed to record open event: %v", err)
		}
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store")
	return c.Send(trackingPixel)
}

// Click records a link-click event and redirects to the original URL.
func (tc *TrackingController) Click(c *fiber.Ctx) error {
	target := c.Query("url")
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid redirect URL",
		})
	}

	// Only redirect for links we actually sent; otherwise this endpoint would
	// launder arbitrary URLs through our domain.
	sent, ok := tc.resolveToken(c.Params("token"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown tracking link",
		})
	}

	event := models.Event{
		Type:       models.EventLinkClicked,
		CampaignID: sent.CampaignID,
		LeadID:     sent.LeadID,
		Metadata: map[string]string{
			"url": target,
		},
	}
	if err := tc.DB.Create(&event).Error; err != nil {
		tc.Logger.Printf("Failed to record click event: %v", err)
	}

	return c.Redirect(target, fiber.StatusFound)
}

// Unsubscribe stops every live enrollment of the lead behind the token.
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	sent, ok := tc.resolveToken(c.Params("token"))
	if !ok || sent.LeadID == nil {
		return c.Status(fiber.StatusNotFound).SendString("Unknown unsubscribe link")
	}

	if err := tc.Reconciler.Unsubscribe(*sent.LeadID); err != nil {
		tc.Logger.Printf("Failed to unsubscribe lead %d: %v", *sent.LeadID, err)
		return c.Status(fiber.StatusInternalServerError).SendString("Something went wrong")
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString("<html><body><p>You have been unsubscribed.</p></body></html>")
}
