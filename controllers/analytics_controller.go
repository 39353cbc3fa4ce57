package controller

import (
	"log"

	"coldreach/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AnalyticsController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewAnalyticsController(db *gorm.DB, logger *log.Logger) *AnalyticsController {
	return &AnalyticsController{DB: db, Logger: logger}
}

var statEventTypes = []string{
	models.EventEmailSent,
	models.EventEmailOpened,
	models.EventLinkClicked,
	models.EventReplyReceived,
	models.EventBounced,
}

// CampaignStats returns event counts, derived rates and the enrollment status
// breakdown for one campaign.
func (ac *AnalyticsController) CampaignStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := ac.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	counts := make(map[string]int64, len(statEventTypes))
	for _, eventType := range statEventTypes {
		var count int64
		if err := ac.DB.Model(&models.Event{}).
			Where("campaign_id = ? AND type = ?", campaign.ID, eventType).
			Count(&count).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to count events",
			})
		}
		counts[eventType] = count
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var enrollments []statusCount
	if err := ac.DB.Model(&models.CampaignLead{}).
		Select("status, count(*) as count").
		Where("campaign_id = ?", campaign.ID).
		Group("status").
		Scan(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count enrollments",
		})
	}

	sent := counts[models.EventEmailSent]
	var openRate, replyRate float64
	if sent > 0 {
		openRate = float64(counts[models.EventEmailOpened]) / float64(sent) * 100
		replyRate = float64(counts[models.EventReplyReceived]) / float64(sent) * 100
	}

	return c.JSON(fiber.Map{
		"sent":        sent,
		"opened":      counts[models.EventEmailOpened],
		"clicked":     counts[models.EventLinkClicked],
		"replied":     counts[models.EventReplyReceived],
		"bounced":     counts[models.EventBounced],
		"open_rate":   openRate,
		"reply_rate":  replyRate,
		"enrollments": enrollments,
	})
}

// Overview aggregates across the user's whole workspace.
func (ac *AnalyticsController) Overview(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var leadTotal int64
	if err := ac.DB.Model(&models.Lead{}).
		Where("user_id = ?", user.ID).
		Count(&leadTotal).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count leads",
		})
	}

	var campaignTotal int64
	if err := ac.DB.Model(&models.Campaign{}).
		Where("user_id = ?", user.ID).
		Count(&campaignTotal).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count campaigns",
		})
	}

	counts := make(map[string]int64, len(statEventTypes))
	for _, eventType := range statEventTypes {
		var count int64
		if err := ac.DB.Model(&models.Event{}).
			Joins("JOIN campaigns ON campaigns.id = events.campaign_id").
			Where("campaigns.user_id = ? AND events.type = ?", user.ID, eventType).
			Count(&count).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to count events",
			})
		}
		counts[eventType] = count
	}

	return c.JSON(fiber.Map{
		"leads":     leadTotal,
		"campaigns": campaignTotal,
		"sent":      counts[models.EventEmailSent],
		"opened":    counts[models.EventEmailOpened],
		"clicked":   counts[models.EventLinkClicked],
		"replied":   counts[models.EventReplyReceived],
		"bounced":   counts[models.EventBounced],
	})
}
