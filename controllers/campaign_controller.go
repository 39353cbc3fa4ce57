package controller

import (
	"log"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CampaignController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCampaignController(db *gorm.DB, logger *log.Logger) *CampaignController {
	return &CampaignController{DB: db, Logger: logger}
}

type campaignInput struct {
	Name       string `json:"name" validate:"required,min=2"`
	DailyLimit *int   `json:"daily_limit"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Timezone   string `json:"timezone"`
	MailboxID  *uint  `json:"mailbox_id"`
}

func (cc *CampaignController) Create(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input campaignInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if input.MailboxID != nil {
		if err := cc.ownMailbox(user.ID, *input.MailboxID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Mailbox not found",
			})
		}
	}

	campaign := models.Campaign{
		UserID:     user.ID,
		Name:       input.Name,
		Status:     models.CampaignStatusDraft,
		DailyLimit: input.DailyLimit,
		StartTime:  input.StartTime,
		EndTime:    input.EndTime,
		Timezone:   input.Timezone,
		MailboxID:  input.MailboxID,
	}
	if err := cc.DB.Create(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create campaign",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (cc *CampaignController) List(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := cc.DB.Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var campaigns []models.Campaign
	if err := query.Order("created_at desc").Find(&campaigns).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaigns",
		})
	}
	return c.JSON(campaigns)
}

func (cc *CampaignController) Get(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Preload("Steps", func(db *gorm.DB) *gorm.DB {
		return db.Order("sequence_steps.\"order\" asc")
	}).Preload("Mailbox").
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	if campaign.Mailbox != nil {
		campaign.Mailbox.Sanitize()
	}
	return c.JSON(campaign)
}

func (cc *CampaignController) Update(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var input campaignInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if input.MailboxID != nil {
		if err := cc.ownMailbox(user.ID, *input.MailboxID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Mailbox not found",
			})
		}
	}

	if input.Name != "" {
		campaign.Name = input.Name
	}
	campaign.DailyLimit = input.DailyLimit
	campaign.StartTime = input.StartTime
	campaign.EndTime = input.EndTime
	campaign.Timezone = input.Timezone
	if input.MailboxID != nil {
		campaign.MailboxID = input.MailboxID
	}

	if err := cc.DB.Save(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign",
		})
	}
	return c.JSON(campaign)
}

type stepInput struct {
	Title      string `json:"title"`
	Type       string `json:"type"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	DelayDays  int    `json:"delay_days"`
	DelayHours int    `json:"delay_hours"`
}

// AddStep appends a sequence step. Steps are frozen once the campaign leaves
// DRAFT: editing a sequence with live enrollments is not supported.
func (cc *CampaignController) AddStep(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	if campaign.Status != models.CampaignStatusDraft {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Sequence steps can only be edited while the campaign is in DRAFT",
		})
	}

	var input stepInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	stepType := input.Type
	if stepType == "" {
		stepType = models.StepTypeEmail
	}
	if stepType != models.StepTypeEmail && stepType != models.StepTypeManualTask {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown step type",
		})
	}
	if stepType == models.StepTypeEmail && (input.Subject == "" || input.Body == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email steps require a subject and body",
		})
	}
	if input.DelayDays < 0 || input.DelayHours < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Delays must not be negative",
		})
	}

	var count int64
	if err := cc.DB.Model(&models.SequenceStep{}).
		Where("campaign_id = ?", campaign.ID).
		Count(&count).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count steps",
		})
	}

	step := models.SequenceStep{
		CampaignID: campaign.ID,
		Title:      input.Title,
		Order:      int(count),
		Type:       stepType,
		Subject:    input.Subject,
		Body:       input.Body,
		DelayDays:  input.DelayDays,
		DelayHours: input.DelayHours,
	}
	if err := cc.DB.Create(&step).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create step",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(step)
}

func (cc *CampaignController) ListSteps(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var steps []models.SequenceStep
	if err := cc.DB.Where("campaign_id = ?", campaign.ID).
		Order("\"order\" asc").Find(&steps).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch steps",
		})
	}
	return c.JSON(steps)
}

// legalStatusTransitions defines the allowed campaign lifecycle moves.
var legalStatusTransitions = map[string][]string{
	models.CampaignStatusDraft:  {models.CampaignStatusActive, models.CampaignStatusArchived},
	models.CampaignStatusActive: {models.CampaignStatusPaused, models.CampaignStatusCompleted, models.CampaignStatusArchived},
	models.CampaignStatusPaused: {models.CampaignStatusActive, models.CampaignStatusArchived},
	models.CampaignStatusCompleted: {models.CampaignStatusArchived},
}

func (cc *CampaignController) UpdateStatus(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	allowed := false
	for _, next := range legalStatusTransitions[campaign.Status] {
		if next == input.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Illegal status transition from " + campaign.Status + " to " + input.Status,
		})
	}

	if input.Status == models.CampaignStatusActive {
		var steps int64
		cc.DB.Model(&models.SequenceStep{}).Where("campaign_id = ?", campaign.ID).Count(&steps)
		if steps == 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Campaign needs at least one sequence step before activation",
			})
		}
		if campaign.MailboxID == nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Campaign needs a sending mailbox before activation",
			})
		}
	}

	campaign.Status = input.Status
	if err := cc.DB.Save(&campaign).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update campaign status",
		})
	}

	cc.Logger.Printf("Campaign %d status changed to %s", campaign.ID, campaign.Status)
	return c.JSON(campaign)
}

// EnrollLeads adds leads to a campaign, initializing the per-lead state
// machine: current_step 0, next action due immediately. Idempotent per
// (campaign, lead) pair.
func (cc *CampaignController) EnrollLeads(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	var input struct {
		LeadIDs []uint `json:"lead_ids"`
	}
	if err := c.BodyParser(&input); err != nil || len(input.LeadIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "lead_ids is required",
		})
	}

	enrolled, skipped := 0, 0
	for _, leadID := range input.LeadIDs {
		var lead models.Lead
		if err := cc.DB.Where("id = ? AND user_id = ?", leadID, user.ID).
			First(&lead).Error; err != nil {
			skipped++
			continue
		}

		enrollment := models.CampaignLead{
			CampaignID:   campaign.ID,
			LeadID:       lead.ID,
			Status:       models.EnrollmentStatusNew,
			CurrentStep:  0,
			NextActionAt: utils.Pointer(time.Now()),
		}
		if err := cc.DB.Where("campaign_id = ? AND lead_id = ?", campaign.ID, lead.ID).
			FirstOrCreate(&enrollment).Error; err != nil {
			skipped++
			continue
		}
		enrolled++
	}

	return c.JSON(fiber.Map{
		"enrolled": enrolled,
		"skipped":  skipped,
	})
}

func (cc *CampaignController) ListEnrollments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var campaign models.Campaign
	if err := cc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&campaign).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	query := cc.DB.Preload("Lead").Where("campaign_id = ?", campaign.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var enrollments []models.CampaignLead
	if err := query.Order("created_at desc").Find(&enrollments).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch enrollments",
		})
	}
	return c.JSON(enrollments)
}

func (cc *CampaignController) ownMailbox(userID, mailboxID uint) error {
	var mailbox models.Mailbox
	return cc.DB.Where("id = ? AND user_id = ?", mailboxID, userID).First(&mailbox).Error
}
