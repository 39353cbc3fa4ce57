package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"coldreach/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCampaignTest(t *testing.T) (*fiber.App, *gorm.DB, *models.User) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))

	user := &models.User{Name: "Owner", Email: "owner@test.io", PasswordHash: "hashed", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	cc := NewCampaignController(db, log.New(io.Discard, "", 0))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", user)
		return c.Next()
	})
	app.Post("/campaigns", cc.Create)
	app.Post("/campaigns/:id/steps", cc.AddStep)
	app.Patch("/campaigns/:id/status", cc.UpdateStatus)
	app.Post("/campaigns/:id/leads", cc.EnrollLeads)

	return app, db, user
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func fiberID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func decodeJSON(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

func TestCampaignLifecycle(t *testing.T) {
	app, db, user := setupCampaignTest(t)

	resp := doJSON(t, app, "POST", "/campaigns", fiber.Map{"name": "Outbound Q3"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var campaign models.Campaign
	decodeJSON(t, resp, &campaign)
	assert.Equal(t, models.CampaignStatusDraft, campaign.Status)

	campaignID := fiberID(campaign.ID)

	t.Run("activation requires a step", func(t *testing.T) {
		resp := doJSON(t, app, "PATCH", "/campaigns/"+campaignID+"/status",
			fiber.Map{"status": models.CampaignStatusActive})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	resp = doJSON(t, app, "POST", "/campaigns/"+campaignID+"/steps", fiber.Map{
		"subject": "Hi {{firstName}}",
		"body":    "<p>Intro</p>",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var step models.SequenceStep
	decodeJSON(t, resp, &step)
	assert.Equal(t, 0, step.Order)
	assert.Equal(t, models.StepTypeEmail, step.Type)

	t.Run("activation requires a mailbox", func(t *testing.T) {
		resp := doJSON(t, app, "PATCH", "/campaigns/"+campaignID+"/status",
			fiber.Map{"status": models.CampaignStatusActive})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	mailbox := &models.Mailbox{
		UserID: user.ID, Email: "sender@test.io",
		SMTPHost: "smtp.test.io", SMTPUsername: "sender", SMTPPassword: "enc",
		Status: models.MailboxStatusActive, DailyLimit: 50,
	}
	require.NoError(t, db.Create(mailbox).Error)
	require.NoError(t, db.Model(&models.Campaign{}).
		Where("id = ?", campaign.ID).Update("mailbox_id", mailbox.ID).Error)

	resp = doJSON(t, app, "PATCH", "/campaigns/"+campaignID+"/status",
		fiber.Map{"status": models.CampaignStatusActive})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	t.Run("steps frozen after draft", func(t *testing.T) {
		resp := doJSON(t, app, "POST", "/campaigns/"+campaignID+"/steps", fiber.Map{
			"subject": "Another",
			"body":    "<p>Body</p>",
		})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("illegal transition rejected", func(t *testing.T) {
		resp := doJSON(t, app, "PATCH", "/campaigns/"+campaignID+"/status",
			fiber.Map{"status": models.CampaignStatusDraft})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})
}

func TestEnrollLeadsIdempotent(t *testing.T) {
	app, db, user := setupCampaignTest(t)

	campaign := &models.Campaign{UserID: user.ID, Name: "Outreach", Status: models.CampaignStatusDraft}
	require.NoError(t, db.Create(campaign).Error)
	lead := &models.Lead{UserID: user.ID, Email: "ana@acme.test", Status: models.LeadStatusNew}
	require.NoError(t, db.Create(lead).Error)

	path := "/campaigns/" + fiberID(campaign.ID) + "/leads"

	resp := doJSON(t, app, "POST", path, fiber.Map{"lead_ids": []uint{lead.ID, 9999}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var result struct {
		Enrolled int `json:"enrolled"`
		Skipped  int `json:"skipped"`
	}
	decodeJSON(t, resp, &result)
	assert.Equal(t, 1, result.Enrolled)
	assert.Equal(t, 1, result.Skipped)

	var enrollment models.CampaignLead
	require.NoError(t, db.Where("campaign_id = ? AND lead_id = ?", campaign.ID, lead.ID).
		First(&enrollment).Error)
	assert.Equal(t, models.EnrollmentStatusNew, enrollment.Status)
	assert.Equal(t, 0, enrollment.CurrentStep)
	assert.NotNil(t, enrollment.NextActionAt)

	// re-enrolling the same lead does not duplicate the row
	resp = doJSON(t, app, "POST", path, fiber.Map{"lead_ids": []uint{lead.ID}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var count int64
	require.NoError(t, db.Model(&models.CampaignLead{}).
		Where("campaign_id = ?", campaign.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
