package models

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type LanguageResponse struct {
	Language    string `json:"language"`
	Dir         string `json:"dir"`
	SwitchLabel string `json:"switch_label"`
}

type PriceResponse struct {
	Quantity      int    `json:"quantity"`
	BaseUnitPrice string `json:"base_unit_price"`
	UnitPrice     string `json:"unit_price"`
	Discount      string `json:"discount_per_unit"`
	CouponCode    string `json:"coupon_code,omitempty"`
	CouponValid   bool   `json:"coupon_valid"`
	Total         string `json:"total"`
	Display       string `json:"display"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Database  string `json:"database"`
	Redis     string `json:"redis"`
	Checkouts int    `json:"active_checkouts"`
	Uptime    string `json:"uptime"`
	GoVersion string `json:"go_version"`
}
