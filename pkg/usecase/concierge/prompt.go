package concierge

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/ilora-retreats/concierge/pkg/model"
	"github.com/ilora-retreats/concierge/pkg/service/knowledge"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed prompt/guest.md
var guestPromptRaw string

//go:embed prompt/nonguest.md
var nonGuestPromptRaw string

var (
	guestPromptTmpl    = template.Must(template.New("guest").Parse(guestPromptRaw))
	nonGuestPromptTmpl = template.Must(template.New("nonguest").Parse(nonGuestPromptRaw))
)

const maxPromptCampaigns = 5

type promptData struct {
	AgentName          string
	PropertyName       string
	HotelData          string
	Query              string
	ProfileBlock       string
	RecentConversation string
	Rules              []model.ConductRule
	Campaigns          []model.Campaign
}

// composePrompt renders the guest or non-guest answer prompt. The two
// templates differ in which service categories they frame as permitted; the
// hard enforcement lives in the policy gate, the prompt text is advisory.
func (b *Bot) composePrompt(snap *knowledge.Snapshot, hotelData, query string, profile *model.GuestProfile, recent []model.ChatMessage) (string, error) {
	data := promptData{
		AgentName:          b.cfg.AgentName,
		PropertyName:       b.cfg.PropertyName,
		HotelData:          hotelData,
		Query:              query,
		RecentConversation: formatConversation(recent),
		Rules:              snap.Rules,
		Campaigns:          snap.Campaigns,
	}
	if len(data.Campaigns) > maxPromptCampaigns {
		data.Campaigns = data.Campaigns[:maxPromptCampaigns]
	}

	tmpl := nonGuestPromptTmpl
	if profile.RegisteredGuest() {
		tmpl = guestPromptTmpl
		data.ProfileBlock = formatProfile(profile)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to render answer prompt")
	}
	return buf.String(), nil
}

// formatProfile summarizes the session profile into the prompt block.
func formatProfile(profile *model.GuestProfile) string {
	if profile == nil {
		return ""
	}

	var parts []string
	add := func(label, value string) {
		if value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Client ID", profile.ClientID)
	add("Name", profile.Name)
	add("Email", profile.Email)
	add("Booking ID", profile.BookingID)
	add("Workflow Stage", profile.WorkflowStage)
	add("Room", profile.RoomAllotted)
	if profile.CheckIn != "" || profile.CheckOut != "" {
		parts = append(parts, fmt.Sprintf("Stay: %s to %s", profile.CheckIn, profile.CheckOut))
	}
	if profile.PendingBalance > 0 {
		parts = append(parts, fmt.Sprintf("Pending: %.2f", profile.PendingBalance))
	}
	return strings.Join(parts, "\n")
}

// formatConversation renders recent history as "User: ..." / "Assistant: ..."
// lines for prompt injection.
func formatConversation(messages []model.ChatMessage) string {
	if len(messages) == 0 {
		return ""
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		lines = append(lines, role+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
