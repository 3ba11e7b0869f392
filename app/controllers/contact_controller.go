package controllers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/bossboard/bossboard/internal/pkg/mail"
)

// ContactController forwards contact form submissions by email. With no
// sender configured submissions are only logged.
type ContactController struct {
	sender    mail.Sender
	recipient string
}

func NewContactController(sender mail.Sender, recipient string) *ContactController {
	return &ContactController{sender: sender, recipient: recipient}
}

type contactRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,max=320"`
	Message string `json:"message" validate:"required,max=10000"`
	Subject string `json:"subject" validate:"max=300"`
}

// HandleContact always answers success once the fields are present; delivery
// failures are logged.
func (cc *ContactController) HandleContact(c *fiber.Ctx) error {
	var req contactRequest
	if err := bindJSON(c, &req); err != nil {
		return textError(c, fiber.StatusBadRequest, msgMissingFields)
	}

	if cc.sender == nil || cc.recipient == "" {
		log.Infof("[Contact] Submission from %s <%s> (%s): %s", req.Name, req.Email, ClientIP(c), req.Message)
		return c.JSON(fiber.Map{"success": true})
	}

	subject := req.Subject
	if subject == "" {
		subject = fmt.Sprintf("New contact form submission from %s", req.Name)
	}
	msg := mail.Message{
		To:       cc.recipient,
		ReplyTo:  req.Email,
		Subject:  subject,
		TextBody: fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s", req.Name, req.Email, req.Message),
	}
	if err := cc.sender.Send(msg); err != nil {
		log.Errorf("[Contact] Failed to send contact email from %s: %v", req.Email, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
