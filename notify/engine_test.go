package notify

import (
	"context"
	"testing"

	"github.com/warepulse/stockwatch_backend/models"
)

type nopSender struct {
	name models.ChannelType
}

func (s *nopSender) Name() models.ChannelType { return s.name }
func (s *nopSender) Send(ctx context.Context, recipient string, payload Payload) DeliveryResult {
	return DeliveryResult{Success: true}
}

func testEngine(channels ...models.ChannelType) *Engine {
	senders := map[models.ChannelType]ChannelSender{}
	for _, ch := range channels {
		senders[ch] = &nopSender{name: ch}
	}
	cfg := DefaultEngineConfig()
	return NewEngine(senders, cfg)
}

func TestChannelSetDefaultsToEmail(t *testing.T) {
	e := testEngine(models.ChannelEmail, models.ChannelSMS, models.ChannelWebhook)

	got := e.channelSet("", models.PriorityHigh)
	if len(got) != 1 || got[0] != models.ChannelEmail {
		t.Fatalf("expected [email] for non-critical with no rule, got %v", got)
	}
}

func TestChannelSetWidensForCritical(t *testing.T) {
	e := testEngine(models.ChannelEmail, models.ChannelSMS, models.ChannelWebhook)

	got := e.channelSet("", models.PriorityCritical)
	if len(got) != 3 {
		t.Fatalf("expected all channels for CRITICAL, got %v", got)
	}
}

func TestChannelSetDropsDisabledSenders(t *testing.T) {
	e := testEngine(models.ChannelEmail) // SMS and webhook not registered

	got := e.channelSet("email,sms", models.PriorityEmergency)
	if len(got) != 1 || got[0] != models.ChannelEmail {
		t.Fatalf("channels without a sender must be dropped, got %v", got)
	}
}

func TestChannelSetHonorsRuleList(t *testing.T) {
	e := testEngine(models.ChannelEmail, models.ChannelWebhook)

	got := e.channelSet("webhook", models.PriorityMedium)
	if len(got) != 1 || got[0] != models.ChannelWebhook {
		t.Fatalf("expected the rule's channel, got %v", got)
	}
}

func TestRouteFallsBackForUnknownCategory(t *testing.T) {
	e := testEngine(models.ChannelEmail)

	r := e.route(models.NotificationCategory("SOMETHING_NEW"))
	if r.Priority != models.PriorityMedium {
		t.Fatalf("unknown categories default to MEDIUM, got %s", r.Priority)
	}
}

func TestRouteKnownCategories(t *testing.T) {
	e := testEngine(models.ChannelEmail)

	if r := e.route(models.CategoryETLError); r.Priority != models.PriorityCritical {
		t.Fatalf("ETL errors are CRITICAL, got %s", r.Priority)
	}
	if r := e.route(models.CategoryNetworkError); r.Priority != models.PriorityMedium {
		t.Fatalf("network errors are MEDIUM, got %s", r.Priority)
	}
	if r := e.route(models.CategorySystem); r.Priority != models.PriorityLow {
		t.Fatalf("system notices are LOW, got %s", r.Priority)
	}
}

func TestRecipientIdRoundTrip(t *testing.T) {
	recipients := []*models.Recipient{{ID: 3}, {ID: 14}, {ID: 159}}
	joined := joinRecipientIds(recipients)
	ids := splitRecipientIds(joined)
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 14 || ids[2] != 159 {
		t.Fatalf("expected [3 14 159], got %v", ids)
	}
	if got := splitRecipientIds(""); len(got) != 0 {
		t.Fatalf("empty input must yield no ids, got %v", got)
	}
}

func TestSplitChannelsSkipsBlanks(t *testing.T) {
	got := splitChannels("email, ,sms,")
	if len(got) != 2 || got[0] != models.ChannelEmail || got[1] != models.ChannelSMS {
		t.Fatalf("expected [email sms], got %v", got)
	}
}
