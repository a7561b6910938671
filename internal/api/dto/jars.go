package dto

import "github.com/graemedakers/decision-jar/pkg/util"

type CreateJarRequest struct {
	Name     string `json:"name"`
	Topic    string `json:"topic,omitempty"`
	Location string `json:"location,omitempty"`

	// IsCommunity lists the jar publicly; InviteGated requires the owner's
	// current invite token on join. Both are fixed at creation.
	IsCommunity bool `json:"is_community,omitempty"`
	InviteGated bool `json:"invite_gated,omitempty"`
}

func (r CreateJarRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}

	return errors
}

// JoinJarRequest resolves an invite code; InviteToken is only needed for
// invite-gated jars.
type JoinJarRequest struct {
	Code        string `json:"code"`
	InviteToken string `json:"invite_token,omitempty"`
}

func (r JoinJarRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Code == "" {
		errors["code"] = "Invite code is required"
	}

	return errors
}

type AddIdeaRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	CostHint    string `json:"cost_hint,omitempty"`
}

func (r AddIdeaRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Title == "" {
		errors["title"] = "Title is required"
	} else if len(r.Title) > 200 {
		errors["title"] = "Title must be at most 200 characters"
	}

	return errors
}

type UpdateIdeaRequest struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	CostHint    string `json:"cost_hint,omitempty"`
}

type SuggestIdeasRequest struct {
	Prompt string `json:"prompt"`
	Count  int    `json:"count,omitempty"`
}

func (r SuggestIdeasRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Prompt == "" {
		errors["prompt"] = "Prompt is required"
	}
	if r.Count < 0 || r.Count > 10 {
		errors["count"] = "Count must be between 1 and 10"
	}

	return errors
}

type CreateReminderRequest struct {
	CronExpr string `json:"cron_expr"`
}

func (r CreateReminderRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CronExpr == "" {
		errors["cron_expr"] = "Schedule is required"
	} else if err := util.ValidateCronExpr(r.CronExpr); err != nil {
		errors["cron_expr"] = "Invalid cron expression"
	}

	return errors
}

type UpdateReminderRequest struct {
	CronExpr  string `json:"cron_expr,omitempty"`
	IsEnabled *bool  `json:"is_enabled,omitempty"`
}

func (r UpdateReminderRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.CronExpr != "" {
		if err := util.ValidateCronExpr(r.CronExpr); err != nil {
			errors["cron_expr"] = "Invalid cron expression"
		}
	}

	return errors
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

func (r RegisterDeviceRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Token == "" {
		errors["token"] = "Token is required"
	}
	switch r.Platform {
	case "ios", "android":
	default:
		errors["platform"] = "Platform must be ios or android"
	}

	return errors
}

type SetLLMKeyRequest struct {
	APIKey string `json:"api_key"`
}

func (r SetLLMKeyRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.APIKey == "" {
		errors["api_key"] = "API key is required"
	}

	return errors
}

// BillingWebhookRequest is the payload the payment provider posts when a
// subscription changes.
type BillingWebhookRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

func (r BillingWebhookRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Plan == "" {
		errors["plan"] = "Plan is required"
	}

	return errors
}
