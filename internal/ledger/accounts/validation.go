package accounts

import (
	"errors"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/money"
)

func validateCreate(in *CreateInput) error {
	in.Code = strings.TrimSpace(strings.ToUpper(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	if in.OutletID == 0 {
		return errors.New("accounts: outlet is required")
	}
	if in.Code == "" {
		return errors.New("accounts: code is required")
	}
	if in.Name == "" {
		return errors.New("accounts: name is required")
	}
	if !in.Type.Valid() {
		return errors.New("accounts: unknown account type")
	}
	if in.Subtype == "" {
		in.Subtype = SubtypeGeneral
	}
	in.OpeningBalance = money.Round(in.OpeningBalance)
	return nil
}
