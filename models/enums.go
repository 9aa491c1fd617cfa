package models

type ReportStatus string

const (
	ReportStatusRequested  ReportStatus = "REQUESTED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusSuccess    ReportStatus = "SUCCESS"
	ReportStatusError      ReportStatus = "ERROR"
	ReportStatusTimeout    ReportStatus = "TIMEOUT"
	ReportStatusProcessed  ReportStatus = "PROCESSED"
)

// reportTransitions is the full transition table. Status moves one way:
// REQUESTED -> PROCESSING -> {SUCCESS, ERROR, TIMEOUT}, and PROCESSED only
// ever follows SUCCESS.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusRequested:  {ReportStatusProcessing, ReportStatusSuccess, ReportStatusError, ReportStatusTimeout},
	ReportStatusProcessing: {ReportStatusSuccess, ReportStatusError, ReportStatusTimeout},
	ReportStatusSuccess:    {ReportStatusProcessed},
	ReportStatusError:      {},
	ReportStatusTimeout:    {},
	ReportStatusProcessed:  {},
}

func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	for _, allowed := range reportTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the remote report run is over. SUCCESS still
// allows the local PROCESSED post-step, but the remote side is done.
func (s ReportStatus) IsTerminal() bool {
	return s != ReportStatusRequested && s != ReportStatusProcessing
}

// IsCompletion reports whether the status ends the remote report run and
// should stamp completed_at. PROCESSED is a local post-step, not a completion.
func (s ReportStatus) IsCompletion() bool {
	return s == ReportStatusSuccess || s == ReportStatusError || s == ReportStatusTimeout
}

type AlertType string

const (
	AlertTypeStockoutCritical AlertType = "STOCKOUT_CRITICAL"
	AlertTypeStockoutWarning  AlertType = "STOCKOUT_WARNING"
	AlertTypeNoSales          AlertType = "NO_SALES"
	AlertTypeSlowMoving       AlertType = "SLOW_MOVING"
)

type AlertLevel string

const (
	AlertLevelCritical AlertLevel = "CRITICAL"
	AlertLevelHigh     AlertLevel = "HIGH"
	AlertLevelMedium   AlertLevel = "MEDIUM"
	AlertLevelLow      AlertLevel = "LOW"
	AlertLevelNormal   AlertLevel = "NORMAL"
)

// SeverityRank orders levels for result sorting, most urgent first.
func (l AlertLevel) SeverityRank() int {
	switch l {
	case AlertLevelCritical:
		return 0
	case AlertLevelHigh:
		return 1
	case AlertLevelMedium:
		return 2
	case AlertLevelLow:
		return 3
	default:
		return 4
	}
}

type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "NEW"
	AlertStatusAcknowledged AlertStatus = "ACKNOWLEDGED"
	AlertStatusResolved     AlertStatus = "RESOLVED"
	AlertStatusIgnored      AlertStatus = "IGNORED"
)

// IsActive reports whether an alert still tracks a live condition. Active
// alerts suppress duplicates for the same (product, type, warehouse).
func (s AlertStatus) IsActive() bool {
	return s == AlertStatusNew || s == AlertStatusAcknowledged
}

type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "pending"
	NotificationStatusSent      NotificationStatus = "sent"
	NotificationStatusFailed    NotificationStatus = "failed"
	NotificationStatusCancelled NotificationStatus = "cancelled"
)

// NotificationPriority is ordinal: higher means more urgent.
type NotificationPriority int

const (
	PriorityLow       NotificationPriority = 1
	PriorityMedium    NotificationPriority = 2
	PriorityHigh      NotificationPriority = 3
	PriorityCritical  NotificationPriority = 4
	PriorityEmergency NotificationPriority = 5
)

func (p NotificationPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	case PriorityEmergency:
		return "EMERGENCY"
	default:
		return "UNKNOWN"
	}
}

// Bump raises priority one tier, capped at EMERGENCY.
func (p NotificationPriority) Bump() NotificationPriority {
	if p >= PriorityEmergency {
		return PriorityEmergency
	}
	return p + 1
}

type NotificationCategory string

const (
	CategoryStockAlert          NotificationCategory = "STOCK_ALERT"
	CategoryETLError            NotificationCategory = "ETL_ERROR"
	CategoryAuthenticationError NotificationCategory = "AUTHENTICATION_ERROR"
	CategoryNetworkError        NotificationCategory = "NETWORK_ERROR"
	CategoryParsingError        NotificationCategory = "PARSING_ERROR"
	CategoryDatabaseError       NotificationCategory = "DATABASE_ERROR"
	CategorySystem              NotificationCategory = "SYSTEM"
)

type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelSMS     ChannelType = "sms"
	ChannelWebhook ChannelType = "webhook"
)

type AccessLevel string

const (
	AccessLevelNone   AccessLevel = "NONE"
	AccessLevelRead   AccessLevel = "READ"
	AccessLevelExport AccessLevel = "EXPORT"
	AccessLevelAdmin  AccessLevel = "ADMIN"
)

func (l AccessLevel) Rank() int {
	switch l {
	case AccessLevelRead:
		return 1
	case AccessLevelExport:
		return 2
	case AccessLevelAdmin:
		return 3
	default:
		return 0
	}
}

// Covers reports whether a grant of this level satisfies the required level.
func (l AccessLevel) Covers(required AccessLevel) bool {
	return l.Rank() >= required.Rank()
}

type AccessOutcome string

const (
	AccessOutcomeGranted AccessOutcome = "granted"
	AccessOutcomeDenied  AccessOutcome = "denied"
	AccessOutcomeLimited AccessOutcome = "limited"
	AccessOutcomeError   AccessOutcome = "error"
)

type StockType string

const (
	StockTypeFBO      StockType = "FBO"
	StockTypeFBS      StockType = "FBS"
	StockTypeStandard StockType = "STANDARD"
)
