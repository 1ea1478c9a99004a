package domain

import "errors"

// 業務拒絕 (Business rejections)：預期中的結果，直接回傳給呼叫端，不記錄為 error log
var (
	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountBlocked 帳戶已凍結
	ErrAccountBlocked = errors.New("account blocked")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCurrencyMismatch 幣別不一致 (本系統不做匯率轉換)
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrSameAccountTransfer 轉出與轉入為同一帳戶
	ErrSameAccountTransfer = errors.New("source and destination accounts must differ")

	// ErrInvalidAmount 金額必須為正數、最多兩位小數且不超過 MaxAmount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency 不支援的幣別
	ErrInvalidCurrency = errors.New("unsupported currency")

	// ErrInvalidAccountKind 不支援的帳戶類型
	ErrInvalidAccountKind = errors.New("unsupported account kind")

	// ErrDescriptionTooLong 描述過長
	ErrDescriptionTooLong = errors.New("description too long")

	// ErrOpeningBalanceTooLow 開戶金額低於最低要求
	ErrOpeningBalanceTooLow = errors.New("opening balance below minimum")

	// ErrTransactionNotFound 找不到交易
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransactionKind 不支援的交易類型
	ErrInvalidTransactionKind = errors.New("unsupported transaction kind")

	// ErrOwnerRequired 帳戶必須屬於一個客戶
	ErrOwnerRequired = errors.New("account owner required")

	// ErrBalanceLimitExceeded 入帳後餘額超過 MaxAmount
	ErrBalanceLimitExceeded = errors.New("resulting balance exceeds limit")

	// ErrTransactionIDConflict 交易 ID 已被內容不同的請求使用
	ErrTransactionIDConflict = errors.New("transaction id already used by a different request")
)

// 內部狀態錯誤
var (
	// ErrAccountNumberExhausted 帳號產生重試次數用盡
	ErrAccountNumberExhausted = errors.New("account number generation exhausted")

	// ErrAccountNumberTaken 帳號已被使用 (Registry 會重試)
	ErrAccountNumberTaken = errors.New("account number already taken")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrTransactionAlreadyProcessed 交易已處理 (冪等)
	ErrTransactionAlreadyProcessed = errors.New("transaction already processed")

	// ErrTransactionFinalized 交易已進入終態，不可再變更
	ErrTransactionFinalized = errors.New("transaction already finalized")
)

// 基礎設施錯誤 (Infrastructure failures)：呼叫端可自行決定是否重試
var (
	// ErrLockTimeout 等待帳戶鎖逾時
	ErrLockTimeout = errors.New("account lock wait timed out")

	// ErrStorageFault 底層儲存失敗，原子單位內的變更皆未生效
	ErrStorageFault = errors.New("storage fault")
)

var rejections = []error{
	ErrAccountNotFound,
	ErrAccountBlocked,
	ErrInsufficientFunds,
	ErrCurrencyMismatch,
	ErrSameAccountTransfer,
	ErrInvalidAmount,
	ErrInvalidCurrency,
	ErrInvalidAccountKind,
	ErrDescriptionTooLong,
	ErrOpeningBalanceTooLow,
	ErrTransactionNotFound,
	ErrInvalidTransactionKind,
	ErrOwnerRequired,
	ErrBalanceLimitExceeded,
	ErrTransactionIDConflict,
}

// IsRejection 判斷是否為業務拒絕
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInfrastructure 判斷是否為基礎設施錯誤
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrStorageFault)
}

// KnownErrors 回傳所有已知錯誤，供傳輸層以訊息還原 sentinel
func KnownErrors() []error {
	known := make([]error, 0, len(rejections)+7)
	known = append(known, rejections...)
	return append(known,
		ErrAccountNumberExhausted,
		ErrAccountNumberTaken,
		ErrAccountAlreadyExists,
		ErrTransactionAlreadyProcessed,
		ErrTransactionFinalized,
		ErrLockTimeout,
		ErrStorageFault,
	)
}
