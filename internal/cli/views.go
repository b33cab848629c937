package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/rmerge/internal/ir"
)

// recipientView is a recipient as printed by the CLI.
type recipientView struct {
	UniqueID    string `json:"unique_id"`
	ServiceID   string `json:"service_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

func newRecipientView(r *ir.Recipient) recipientView {
	v := recipientView{UniqueID: r.UniqueID}
	if r.ServiceID != nil {
		v.ServiceID = r.ServiceID.String()
	}
	if r.PhoneNumber != nil {
		v.PhoneNumber = r.PhoneNumber.String()
	}
	return v
}

func (v recipientView) String() string {
	sid, phone := v.ServiceID, v.PhoneNumber
	if sid == "" {
		sid = "-"
	}
	if phone == "" {
		phone = "-"
	}
	return fmt.Sprintf("%s\tservice_id=%s\tphone=%s", v.UniqueID, sid, phone)
}

type recipientList []recipientView

func (l recipientList) String() string {
	if len(l) == 0 {
		return "No recipients."
	}
	lines := make([]string, len(l))
	for i, v := range l {
		lines[i] = v.String()
	}
	return strings.Join(lines, "\n")
}

// localView is the local account as printed by the CLI.
type localView struct {
	ACI         string `json:"aci"`
	PNI         string `json:"pni,omitempty"`
	PhoneNumber string `json:"phone_number"`
}

func newLocalView(l ir.LocalIdentifiers) localView {
	v := localView{ACI: l.ACI.String(), PhoneNumber: l.PhoneNumber.String()}
	if l.PNI != nil {
		v.PNI = l.PNI.String()
	}
	return v
}

func (v localView) String() string {
	s := fmt.Sprintf("aci=%s\tphone=%s", v.ACI, v.PhoneNumber)
	if v.PNI != "" {
		s += "\tpni=" + v.PNI
	}
	return s
}

// pendingList is the storage sync queue as printed by the CLI.
type pendingList []string

func (l pendingList) String() string {
	if len(l) == 0 {
		return "No recipients pending sync."
	}
	return strings.Join(l, "\n")
}

// parseServiceIDFlag parses an optional service id flag.
func parseServiceIDFlag(name, value string) (*ir.ServiceID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := ir.ParseServiceID(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &id, nil
}

// parsePhoneFlag parses an optional phone number flag.
func parsePhoneFlag(name, value string) (*ir.E164, error) {
	if value == "" {
		return nil, nil
	}
	p, err := ir.ParseE164(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &p, nil
}
