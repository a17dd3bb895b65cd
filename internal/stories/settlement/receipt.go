package settlement

import (
	"encoding/json"
	"fmt"

	"github.com/go-faster/jx"
	yoocommon "github.com/rvinnie/yookassa-sdk-go/yookassa/common"
	yoopayment "github.com/rvinnie/yookassa-sdk-go/yookassa/payment"
)

const paymentModeFullPayment = "full_payment"

// newReceipt чек ЮKassa: одна позиция, цена за месяц, количество = месяцы.
func newReceipt(description string, months, unitPrice, vatCode int, currency string) *yoopayment.Receipt {
	return &yoopayment.Receipt{
		Items: []*yoocommon.Item{{
			Description: description,
			Quantity:    fmt.Sprintf("%d.00", months),
			Amount: &yoocommon.Amount{
				Value:    fmt.Sprintf("%d.00", unitPrice),
				Currency: currency,
			},
			VatCode:     int16(vatCode),
			PaymentMode: paymentModeFullPayment,
		}},
	}
}

// encodeProviderData оборачивает чек в {"receipt": ...}. Позиции кодируются по тегам SDK,
// customer без значения не пишем: null ЮKassa не принимает.
func encodeProviderData(receipt *yoopayment.Receipt) (string, error) {
	items, err := json.Marshal(receipt.Items)
	if err != nil {
		return "", fmt.Errorf("encode receipt items: %w", err)
	}

	var customer []byte
	if receipt.Customer != nil {
		if customer, err = json.Marshal(receipt.Customer); err != nil {
			return "", fmt.Errorf("encode receipt customer: %w", err)
		}
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("receipt", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if customer != nil {
					e.Field("customer", func(e *jx.Encoder) { e.Raw(customer) })
				}
				e.Field("items", func(e *jx.Encoder) { e.Raw(items) })
				if receipt.TaxSystemCode != 0 {
					e.Field("tax_system_code", func(e *jx.Encoder) { e.Int(int(receipt.TaxSystemCode)) })
				}
			})
		})
	})

	return e.String(), nil
}
