package payments

import (
	"regexp"
	"strings"

	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

var kenyanMSISDN = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone converts a Kenyan mobile number to 254XXXXXXXXX. Local
// 0-prefixed and +254 forms are accepted; anything else is rejected.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		phone = "254" + phone[1:]
	}
	if !kenyanMSISDN.MatchString(phone) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payerPhone must be a Kenyan mobile number").
			WithDetails(map[string]any{"payerPhone": raw})
	}
	return phone, nil
}
