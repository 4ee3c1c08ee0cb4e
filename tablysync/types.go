package tablysync

import "encoding/json"

// Wire types for the Tably orders API. Amounts arrive as JSON numbers and are
// converted to decimals at the point of use; see decimalFromNumber.

type Order struct {
	GUID          string     `json:"guid"`
	BusinessDate  string     `json:"businessDate"`
	Voided        bool       `json:"voided"`
	Deleted       bool       `json:"deleted"`
	OpenedDate    string     `json:"openedDate"`
	DiningService *EntityRef `json:"diningService"`
	RevenueCenter *EntityRef `json:"revenueCenter"`
	Checks        []Check    `json:"checks"`
}

type Check struct {
	GUID                  string          `json:"guid"`
	Voided                bool            `json:"voided"`
	Amount                json.Number     `json:"amount"`
	AppliedDiscounts      []Discount      `json:"appliedDiscounts"`
	Selections            []Selection     `json:"selections"`
	Payments              []Payment       `json:"payments"`
	AppliedServiceCharges []ServiceCharge `json:"appliedServiceCharges"`
}

type Selection struct {
	GUID             string      `json:"guid"`
	Voided           bool        `json:"voided"`
	Price            json.Number `json:"price"`
	SalesCategory    *EntityRef  `json:"salesCategory"`
	AppliedDiscounts []Discount  `json:"appliedDiscounts"`
}

type Discount struct {
	GUID   string      `json:"guid"`
	Amount json.Number `json:"discountAmount"`
}

// Payment may report a refund two ways: an embedded Refund object or the flat
// RefundAmount field. They are alternative representations of the same refund,
// never additive; see resolvePaymentRefund.
type Payment struct {
	GUID         string      `json:"guid"`
	Amount       json.Number `json:"amount"`
	RefundAmount json.Number `json:"refundAmount"`
	Refund       *Refund     `json:"refund"`
}

type Refund struct {
	Amount json.Number `json:"refundAmount"`
}

type ServiceCharge struct {
	GUID     string      `json:"guid"`
	Amount   json.Number `json:"chargeAmount"`
	Gratuity bool        `json:"gratuity"`
}

type EntityRef struct {
	GUID string `json:"guid"`
}

// ConfigMappings holds the provider configuration dictionaries resolved once
// per sync run: sales-category guid -> category name, dining-service guid ->
// daypart name, revenue-center guid -> display info. The engine treats them as
// opaque read-only lookups.
type ConfigMappings struct {
	SalesCategories map[string]string            `json:"salesCategories"`
	DiningServices  map[string]string            `json:"diningServices"`
	RevenueCenters  map[string]RevenueCenterInfo `json:"revenueCenters"`
}

type RevenueCenterInfo struct {
	Name    string `json:"name"`
	Outdoor bool   `json:"outdoor"`
}

// API request/response DTOs.

type ConnectRequest struct {
	RestaurantId   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
	APIKey         string `json:"apiKey"`
}

type TriggerSyncRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type StatusResponse struct {
	Connection        ConnectionResponse `json:"connection"`
	LastSyncAt        *string            `json:"lastSyncAt"`
	LastSuccessSyncAt *string            `json:"lastSuccessSyncAt"`
}

type ConnectionResponse struct {
	Status         string `json:"status"`
	RestaurantId   string `json:"restaurantId"`
	RestaurantName string `json:"restaurantName"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID            uint    `json:"id"`
	Status        string  `json:"status"`
	StartDate     string  `json:"startDate"`
	EndDate       string  `json:"endDate"`
	StartedAt     *string `json:"startedAt"`
	FinishedAt    *string `json:"finishedAt"`
	DurationMs    int64   `json:"durationMs"`
	OrdersFetched int     `json:"ordersFetched"`
	ErrorCount    int     `json:"errorCount"`
	TriggeredBy   string  `json:"triggeredBy"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Stats  json.RawMessage     `json:"stats"`
	Errors []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID         uint   `json:"id"`
	EntityType string `json:"entityType"`
	ExternalId string `json:"externalId"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncPubSubPayload struct {
	RunId        uint   `json:"run_id"`
	BusinessId   string `json:"business_id"`
	ConnectionId uint   `json:"connection_id"`
}
