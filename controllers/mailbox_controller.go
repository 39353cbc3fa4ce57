package controller

import (
	"log"
	"time"

	"coldreach/models"
	"coldreach/utils"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

type MailboxController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewMailboxController(db *gorm.DB, logger *log.Logger) *MailboxController {
	return &MailboxController{DB: db, Logger: logger}
}

type mailboxInput struct {
	Email        string `json:"email" validate:"required,email"`
	Name         string `json:"name"`
	FromName     string `json:"from_name"`
	SMTPHost     string `json:"smtp_host" validate:"required"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	SMTPPassword string `json:"smtp_password"`
	IMAPHost     string `json:"imap_host"`
	IMAPPort     int    `json:"imap_port"`
	IMAPUsername string `json:"imap_username"`
	IMAPPassword string `json:"imap_password"`
	IMAPMailbox  string `json:"imap_mailbox"`
	DailyLimit   int    `json:"daily_limit"`
}

func (mc *MailboxController) Create(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input mailboxInput
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
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email address",
		})
	}
	if input.SMTPPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "smtp_password is required",
		})
	}

	smtpPassword, err := utils.Encrypt(input.SMTPPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encrypt credentials",
		})
	}
	imapPassword, err := utils.Encrypt(input.IMAPPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to encrypt credentials",
		})
	}

	mailbox := models.Mailbox{
		UserID:       user.ID,
		Email:        utils.NormalizeEmail(input.Email),
		Name:         input.Name,
		FromName:     input.FromName,
		SMTPHost:     input.SMTPHost,
		SMTPPort:     portOrDefault(input.SMTPPort, 587),
		SMTPUsername: input.SMTPUsername,
		SMTPPassword: smtpPassword,
		IMAPHost:     input.IMAPHost,
		IMAPPort:     portOrDefault(input.IMAPPort, 993),
		IMAPUsername: input.IMAPUsername,
		IMAPPassword: imapPassword,
		IMAPMailbox:  input.IMAPMailbox,
		Status:       models.MailboxStatusActive,
		DailyLimit:   input.DailyLimit,
		LastReset:    time.Now(),
	}
	if mailbox.DailyLimit <= 0 {
		mailbox.DailyLimit = 50
	}
	if mailbox.IMAPMailbox == "" {
		mailbox.IMAPMailbox = "INBOX"
	}

	if err := mc.DB.Create(&mailbox).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Mailbox with this email already exists",
		})
	}

	mailbox.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(mailbox)
}

func (mc *MailboxController) List(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var mailboxes []models.Mailbox
	if err := mc.DB.Where("user_id = ?", user.ID).Find(&mailboxes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch mailboxes",
		})
	}
	for i := range mailboxes {
		mailboxes[i].Sanitize()
	}
	return c.JSON(mailboxes)
}

func (mc *MailboxController) Get(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var mailbox models.Mailbox
	if err := mc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&mailbox).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mailbox not found",
		})
	}
	mailbox.Sanitize()
	return c.JSON(mailbox)
}

func (mc *MailboxController) Update(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var mailbox models.Mailbox
	if err := mc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&mailbox).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mailbox not found",
		})
	}

	var input mailboxInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if input.Name != "" {
		mailbox.Name = input.Name
	}
	if input.FromName != "" {
		mailbox.FromName = input.FromName
	}
	if input.SMTPHost != "" {
		mailbox.SMTPHost = input.SMTPHost
	}
	if input.SMTPPort != 0 {
		mailbox.SMTPPort = input.SMTPPort
	}
	if input.SMTPUsername != "" {
		mailbox.SMTPUsername = input.SMTPUsername
	}
	if input.SMTPPassword != "" {
		encrypted, err := utils.Encrypt(input.SMTPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to encrypt credentials",
			})
		}
		mailbox.SMTPPassword = encrypted
	}
	if input.IMAPHost != "" {
		mailbox.IMAPHost = input.IMAPHost
	}
	if input.IMAPPort != 0 {
		mailbox.IMAPPort = input.IMAPPort
	}
	if input.IMAPUsername != "" {
		mailbox.IMAPUsername = input.IMAPUsername
	}
	if input.IMAPPassword != "" {
		encrypted, err := utils.Encrypt(input.IMAPPassword)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to encrypt credentials",
			})
		}
		mailbox.IMAPPassword = encrypted
	}
	if input.DailyLimit > 0 {
		mailbox.DailyLimit = input.DailyLimit
	}

	if err := mc.DB.Save(&mailbox).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update mailbox",
		})
	}

	mailbox.Sanitize()
	return c.JSON(mailbox)
}

func (mc *MailboxController) Delete(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	res := mc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		Delete(&models.Mailbox{})
	if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete mailbox",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mailbox not found",
		})
	}
	return c.JSON(fiber.Map{"message": "Mailbox deleted"})
}

// Test dials the SMTP server with the stored credentials and reports whether
// the connection and authentication succeed.
func (mc *MailboxController) Test(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var mailbox models.Mailbox
	if err := mc.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).
		First(&mailbox).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Mailbox not found",
		})
	}

	password, err := utils.Decrypt(mailbox.SMTPPassword)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to decrypt credentials",
		})
	}

	dialer := gomail.NewDialer(mailbox.SMTPHost, mailbox.SMTPPort, mailbox.SMTPUsername, password)
	closer, err := dialer.Dial()
	if err != nil {
		message := err.Error()
		mc.DB.Model(&mailbox).Updates(map[string]interface{}{
			"status":     models.MailboxStatusError,
			"last_error": &message,
		})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"ok":    false,
			"error": message,
		})
	}
	closer.Close()

	mc.DB.Model(&mailbox).Updates(map[string]interface{}{
		"status":     models.MailboxStatusActive,
		"last_error": nil,
	})
	return c.JSON(fiber.Map{"ok": true})
}

func portOrDefault(port, fallback int) int {
	if port > 0 {
		return port
	}
	return fallback
}
