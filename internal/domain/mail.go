package domain

type DeliveryFailureMailData struct {
	Event    string                `json:"event"`
	ShiftID  int64                 `json:"shiftID"`
	Attempts int                   `json:"attempts"`
	Failures []DeliveryFailureItem `json:"failures"`
}

type DeliveryFailureItem struct {
	EmployeeID   int64  `json:"employeeID"`
	Phone        string `json:"phone"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}
