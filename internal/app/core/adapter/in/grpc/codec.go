package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

// 欄位名稱
const (
	fieldAccountID            = "account_id"
	fieldNumber               = "number"
	fieldKind                 = "kind"
	fieldCurrency             = "currency"
	fieldStatus               = "status"
	fieldBalance              = "balance"
	fieldOwnerRef             = "owner_ref"
	fieldOpeningFee           = "opening_fee"
	fieldWithdrawalLimit      = "withdrawal_limit"
	fieldVersion              = "version"
	fieldCreatedAt            = "created_at"
	fieldUpdatedAt            = "updated_at"
	fieldInitialBalance       = "initial_balance"
	fieldTransactionID        = "transaction_id"
	fieldAmount               = "amount"
	fieldSourceAccountID      = "source_account_id"
	fieldDestinationAccountID = "destination_account_id"
	fieldReason               = "reason"
	fieldDescription          = "description"
	fieldExecutedAt           = "executed_at"
	fieldLimit                = "limit"
	fieldTransactions         = "transactions"
	fieldAccounts             = "accounts"
)

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func intField(s *structpb.Struct, key string) int {
	return int(s.GetFields()[key].GetNumberValue())
}

func uuidField(s *structpb.Struct, key string) (uuid.UUID, error) {
	raw := stringField(s, key)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s: %v", key, err)
	}
	return id, nil
}

func decimalField(s *structpb.Struct, key string) (decimal.Decimal, error) {
	raw := stringField(s, key)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	return d, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func accountToMap(a domain.Account) map[string]any {
	return map[string]any{
		fieldAccountID:       a.ID,
		fieldNumber:          a.Number,
		fieldKind:            string(a.Kind),
		fieldCurrency:        string(a.Currency),
		fieldStatus:          string(a.Status),
		fieldBalance:         a.Balance.StringFixed(domain.AmountScale),
		fieldOwnerRef:        a.OwnerRef,
		fieldOpeningFee:      a.OpeningFee.StringFixed(domain.AmountScale),
		fieldWithdrawalLimit: a.WithdrawalLimit.StringFixed(domain.AmountScale),
		fieldVersion:         a.Version,
		fieldCreatedAt:       formatTime(a.CreatedAt),
		fieldUpdatedAt:       formatTime(a.UpdatedAt),
	}
}

func accountToStruct(a domain.Account) (*structpb.Struct, error) {
	return structpb.NewStruct(accountToMap(a))
}

func accountFromStruct(s *structpb.Struct) (domain.Account, error) {
	balance, err := decimal.NewFromString(stringField(s, fieldBalance))
	if err != nil {
		return domain.Account{}, fmt.Errorf("decode balance: %w", err)
	}
	fee, _ := decimal.NewFromString(stringField(s, fieldOpeningFee))
	limit, _ := decimal.NewFromString(stringField(s, fieldWithdrawalLimit))
	return domain.Account{
		ID:              stringField(s, fieldAccountID),
		Number:          stringField(s, fieldNumber),
		Kind:            domain.AccountKind(stringField(s, fieldKind)),
		Currency:        domain.Currency(stringField(s, fieldCurrency)),
		Status:          domain.AccountStatus(stringField(s, fieldStatus)),
		Balance:         balance,
		OwnerRef:        stringField(s, fieldOwnerRef),
		OpeningFee:      fee,
		WithdrawalLimit: limit,
		Version:         int64(s.GetFields()[fieldVersion].GetNumberValue()),
		CreatedAt:       parseTime(stringField(s, fieldCreatedAt)),
		UpdatedAt:       parseTime(stringField(s, fieldUpdatedAt)),
	}, nil
}

func transactionToMap(t domain.Transaction) map[string]any {
	return map[string]any{
		fieldTransactionID:        t.ID.String(),
		fieldKind:                 string(t.Kind),
		fieldAmount:               t.Amount.StringFixed(domain.AmountScale),
		fieldCurrency:             string(t.Currency),
		fieldSourceAccountID:      t.SourceAccountID,
		fieldDestinationAccountID: t.DestinationAccountID,
		fieldStatus:               string(t.Status),
		fieldReason:               t.Reason,
		fieldDescription:          t.Description,
		fieldExecutedAt:           formatTime(t.ExecutedAt),
	}
}

func transactionToStruct(t domain.Transaction) (*structpb.Struct, error) {
	return structpb.NewStruct(transactionToMap(t))
}

func transactionFromStruct(s *structpb.Struct) (domain.Transaction, error) {
	id, err := uuid.Parse(stringField(s, fieldTransactionID))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decode transaction id: %w", err)
	}
	amount, err := decimal.NewFromString(stringField(s, fieldAmount))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	return domain.Transaction{
		ID:                   id,
		Kind:                 domain.TransactionKind(stringField(s, fieldKind)),
		Amount:               amount,
		Currency:             domain.Currency(stringField(s, fieldCurrency)),
		SourceAccountID:      stringField(s, fieldSourceAccountID),
		DestinationAccountID: stringField(s, fieldDestinationAccountID),
		Status:               domain.TransactionStatus(stringField(s, fieldStatus)),
		Reason:               stringField(s, fieldReason),
		Description:          stringField(s, fieldDescription),
		ExecutedAt:           parseTime(stringField(s, fieldExecutedAt)),
	}, nil
}

// toStatus 錯誤分類 -> gRPC status；訊息只使用 sentinel 本身，不外洩儲存層細節
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && !isDomainError(err) {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrTransactionNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrAccountBlocked),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrSameAccountTransfer),
		errors.Is(err, domain.ErrOpeningBalanceTooLow),
		errors.Is(err, domain.ErrBalanceLimitExceeded),
		errors.Is(err, domain.ErrTransactionIDConflict):
		code = codes.FailedPrecondition
	case domain.IsRejection(err):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrAccountNumberExhausted):
		code = codes.ResourceExhausted
	case errors.Is(err, domain.ErrLockTimeout):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, context.Canceled.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, context.DeadlineExceeded.Error())
	}
	return status.Error(code, sentinelOf(err).Error())
}

// fromStatus gRPC status -> domain sentinel (無法對應時原樣回傳)
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, known := range domain.KnownErrors() {
		if st.Message() == known.Error() {
			return known
		}
	}
	return err
}

func isDomainError(err error) bool {
	for _, known := range domain.KnownErrors() {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func sentinelOf(err error) error {
	for _, known := range domain.KnownErrors() {
		if errors.Is(err, known) {
			return known
		}
	}
	return domain.ErrStorageFault
}
