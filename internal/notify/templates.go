package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/grantportal/backend/internal/models"
)

var (
	receiptTmpl = template.Must(template.New("receipt").Parse(`<p>Hello {{.Name}},</p>
<p>We received your {{.KindLabel}} <strong>{{.Title}}</strong> for the {{.Cycle}} cycle on behalf of {{.Organization}}.</p>
<p>You can follow its status at <a href="{{.Link}}">{{.Link}}</a>.</p>`))

	staffTmpl = template.Must(template.New("staff").Parse(`<p>A new {{.KindLabel}} was submitted.</p>
<ul>
<li>Organization: {{.Organization}}</li>
<li>Cycle: {{.Cycle}}</li>
<li>Title: {{.Title}}</li>
<li>Amount requested: {{.Amount}}</li>
<li>Submitted by: {{.Name}} ({{.Email}})</li>
</ul>
<p><a href="{{.Link}}">Open in the portal</a></p>`))

	statusTmpl = template.Must(template.New("status").Parse(`<p>Hello {{.Name}},</p>
<p>The status of your {{.KindLabel}} <strong>{{.Title}}</strong> is now <strong>{{.Status}}</strong>.</p>
<p><a href="{{.Link}}">View it in the portal</a></p>`))
)

// Submission describes a newly submitted application for email composition.
type Submission struct {
	Application  *models.Application
	Organization *models.Organization
	Cycle        *models.Cycle
	Submitter    *models.User
	BaseURL      string
}

type view struct {
	Name         string
	Email        string
	Organization string
	Cycle        string
	Title        string
	KindLabel    string
	Amount       string
	Status       string
	Link         string
}

func (s Submission) view() view {
	v := view{
		Title:     s.Application.Title,
		KindLabel: KindLabel(s.Application.Kind),
		Amount:    FormatCents(s.Application.AmountRequestedCents),
		Status:    StatusLabel(s.Application.Status),
		Link:      fmt.Sprintf("%s/applications/%s", strings.TrimRight(s.BaseURL, "/"), s.Application.ID),
	}
	if s.Organization != nil {
		v.Organization = s.Organization.Name
	}
	if s.Cycle != nil {
		v.Cycle = s.Cycle.Name
	}
	if s.Submitter != nil {
		v.Name = s.Submitter.FullName()
		v.Email = s.Submitter.Email
	}
	if v.Name == "" {
		v.Name = "there"
	}
	return v
}

// SubmissionReceipt is the confirmation sent to the submitter.
func SubmissionReceipt(s Submission) (Message, error) {
	v := s.view()
	body, err := render(receiptTmpl, v)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:    models.EmailTypeSubmissionReceipt,
		To:      v.Email,
		Subject: fmt.Sprintf("We received your %s: %s", v.KindLabel, v.Title),
		HTML:    body,
	}, nil
}

// StaffNotification tells staff about a new submission. Replies go to the submitter.
func StaffNotification(s Submission, staffEmail string) (Message, error) {
	v := s.view()
	body, err := render(staffTmpl, v)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:    models.EmailTypeStaffNotification,
		To:      staffEmail,
		Subject: fmt.Sprintf("New %s from %s", v.KindLabel, v.Organization),
		HTML:    body,
		ReplyTo: v.Email,
	}, nil
}

// StatusChange tells the submitter their application changed status.
func StatusChange(s Submission) (Message, error) {
	v := s.view()
	body, err := render(statusTmpl, v)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:    models.EmailTypeStatusChange,
		To:      v.Email,
		Subject: fmt.Sprintf("Your %s is %s", v.KindLabel, strings.ToLower(v.Status)),
		HTML:    body,
	}, nil
}

// KindLabel is the human name of an application kind.
func KindLabel(k models.ApplicationKind) string {
	if k == models.KindLOI {
		return "letter of intent"
	}
	return "application"
}

// StatusLabel is the human name of an application status.
func StatusLabel(s string) string {
	switch s {
	case models.StatusUnderReview:
		return "Under review"
	case models.StatusApproved:
		return "Approved"
	case models.StatusDeclined:
		return "Declined"
	default:
		return "Submitted"
	}
}

// FormatCents renders an amount in cents as dollars with thousands separators.
func FormatCents(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("$%s.%02d", b.String(), cents%100)
	if neg {
		return "-" + out
	}
	return out
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
