package models

type FingerprintRecord struct {
	Input     string `json:"input"`
	Timestamp string `json:"timestamp"`
}

type FingerprintPage struct {
	Fingerprints []FingerprintRecord `json:"fingerprints"`
	CurrentPage  int                 `json:"current_page"`
	TotalPages   int                 `json:"total_pages"`
}

// CountBucket is the number of records observed in one fixed-width time window.
type CountBucket struct {
	Timestamp string `json:"timestamp"`
	Count     int    `json:"count"`
}
