package controllers

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bossboard/bossboard/internal/pkg/mail"
)

func newContactApp(sender mail.Sender, recipient string) *fiber.App {
	app := fiber.New()
	app.Post("/api/contact", NewContactController(sender, recipient).HandleContact)
	return app
}

func TestContactMissingFields(t *testing.T) {
	sender := &fakeSender{}
	app := newContactApp(sender, "team@example.com")

	for _, body := range []string{
		`{"email":"a@example.com","message":"hi"}`,
		`{"name":"Ann","message":"hi"}`,
		`{"name":"Ann","email":"a@example.com"}`,
		`nope`,
	} {
		resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/contact", body, ""), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Missing required fields", readBody(t, resp))
	}
	assert.Empty(t, sender.sent)
}

func TestContactSendsMail(t *testing.T) {
	sender := &fakeSender{}
	app := newContactApp(sender, "team@example.com")

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/contact", `{"name":"Ann","email":"ann@example.com","message":"Do you support Yelp?"}`, ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, readBody(t, resp))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "team@example.com", msg.To)
	assert.Equal(t, "ann@example.com", msg.ReplyTo)
	assert.Equal(t, "New contact form submission from Ann", msg.Subject)
	assert.Contains(t, msg.TextBody, "Do you support Yelp?")
}

func TestContactDeliveryFailureStillSucceeds(t *testing.T) {
	sender := &fakeSender{err: errors.New("dial tcp: connection refused")}
	app := newContactApp(sender, "team@example.com")

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/contact", `{"name":"Ann","email":"ann@example.com","message":"hi","subject":"Pricing"}`, ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Pricing", sender.sent[0].Subject)
}

func TestContactWithoutSenderOnlyLogs(t *testing.T) {
	app := newContactApp(nil, "")

	resp, err := app.Test(jsonRequest(fiber.MethodPost, "/api/contact", `{"name":"Ann","email":"ann@example.com","message":"hi"}`, ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true}`, readBody(t, resp))
}

func TestPlansEndpointHidesPriceIDs(t *testing.T) {
	app := fiber.New()
	app.Get("/api/plans", HandlePlans(testCatalog(t)))

	resp, err := app.Test(jsonRequest(fiber.MethodGet, "/api/plans", "", ""), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.NotContains(t, body, "price_pro_m")

	var out struct {
		Plans []struct {
			ID     string `json:"id"`
			Limits struct {
				AICredits int `json:"aiCredits"`
			} `json:"limits"`
		} `json:"plans"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Plans, 3)
	assert.Equal(t, "free", out.Plans[0].ID)
	assert.Equal(t, 30, out.Plans[0].Limits.AICredits)
}

func TestClientIP(t *testing.T) {
	app := fiber.New()
	app.Get("/ip", func(c *fiber.Ctx) error { return c.SendString(ClientIP(c)) })

	req := jsonRequest(fiber.MethodGet, "/ip", "", "")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", readBody(t, resp))

	req = jsonRequest(fiber.MethodGet, "/ip", "", "")
	req.Header.Set("CF-Connecting-IP", "2001:db8::1")
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", readBody(t, resp))
}
