package controller

import (
	"log"
	"strconv"

	"coldreach/models"
	"coldreach/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{DB: db, Logger: logger}
}

type leadInput struct {
	Email     string            `json:"email" validate:"required,email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Company   string            `json:"company"`
	JobTitle  string            `json:"job_title"`
	Website   string            `json:"website"`
	Location  string            `json:"location"`
	Timezone  string            `json:"timezone"`
	Metadata  map[string]string `json:"metadata"`
}

func (li *leadInput) toModel(userID uint, source string) models.Lead {
	return models.Lead{
		UserID:    userID,
		Email:     utils.NormalizeEmail(li.Email),
		FirstName: li.FirstName,
		LastName:  li.LastName,
		Company:   li.Company,
		JobTitle:  li.JobTitle,
		Website:   li.Website,
		Location:  li.Location,
		Timezone:  li.Timezone,
		Metadata:  li.Metadata,
		Status:    models.LeadStatusNew,
		Source:    source,
	}
}

func (lc *LeadController) Create(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}

	lead := input.toModel(user.ID, "manual")
	if err := lc.DB.Create(&lead).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Lead with this email already exists",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(lead)
}

func (lc *LeadController) List(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := lc.DB.Model(&models.Lead{}).Where("user_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("email LIKE ?", "%"+utils.NormalizeEmail(search)+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count leads",
		})
	}

	var leads []models.Lead
	if err := query.Order("created_at desc").
		Offset((page - 1) * limit).Limit(limit).
		Find(&leads).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch leads",
		})
	}

	return c.JSON(fiber.Map{
		"leads": leads,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (lc *LeadController) Get(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lead models.Lead
	if err := lc.DB.Preload("Enrollments").
		Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&lead).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}
	return c.JSON(lead)
}

func (lc *LeadController) Update(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var lead models.Lead
	if err := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&lead).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	lead.FirstName = input.FirstName
	lead.LastName = input.LastName
	lead.Company = input.Company
	lead.JobTitle = input.JobTitle
	lead.Website = input.Website
	lead.Location = input.Location
	lead.Timezone = input.Timezone
	if input.Metadata != nil {
		lead.Metadata = input.Metadata
	}

	if err := lc.DB.Save(&lead).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update lead",
		})
	}
	return c.JSON(lead)
}

func (lc *LeadController) Delete(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	res := lc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		Delete(&models.Lead{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete lead",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Lead not found",
		})
	}
	return c.JSON(fiber.Map{"message": "Lead deleted"})
}

// BulkImport ingests a JSON array of leads, skipping invalid addresses and
// duplicates instead of failing the whole batch.
func (lc *LeadController) BulkImport(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Leads []leadInput `json:"leads" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(input.Leads) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No leads provided",
		})
	}

	imported, skipped := 0, 0
	for _, item := range input.Leads {
		if err := checkmail.ValidateFormat(item.Email); err != nil {
			skipped++
			continue
		}
		lead := item.toModel(user.ID, "import")
		if err := lc.DB.Create(&lead).Error; err != nil {
			skipped++
			continue
		}
		imported++
	}

	lc.Logger.Printf("Bulk import for user %d: %d imported, %d skipped", user.ID, imported, skipped)

	return c.JSON(fiber.Map{
		"imported": imported,
		"skipped":  skipped,
	})
}

// Capture is the public widget endpoint: no auth, rate limited at the router.
func (lc *LeadController) Capture(c *fiber.Ctx) error {
	userID, err := strconv.Atoi(c.Params("userID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid workspace",
		})
	}
	var owner models.User
	if err := lc.DB.First(&owner, userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Workspace not found",
		})
	}

	var input leadInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}

	lead := input.toModel(owner.ID, "widget")
	if err := lc.DB.Create(&lead).Error; err != nil {
		// Duplicate capture is not an error from the visitor's perspective.
		return c.JSON(fiber.Map{"message": "Thanks, you're already on the list"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Thanks for signing up"})
}
