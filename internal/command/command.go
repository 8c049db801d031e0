// Package command decodes inline-button callback data into a tagged
// Command once, at the transport boundary. Encode produces the exact wire
// tokens, so buttons built here round-trip through Parse.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknown is returned for callback data no Kind matches.
var ErrUnknown = errors.New("command: unknown callback data")

// Kind tags the callback variant.
type Kind int

const (
	Unknown Kind = iota
	NewOrder
	MyStatus
	Help
	Back
	AddProduct
	DeleteProduct
	AdminBack
	EditProduct
	DeleteProductID
	EditField
	Confirm
	Reject
	LegacyConfirm
	LegacyReject
)

var kindNames = [...]string{
	Unknown:         "unknown",
	NewOrder:        "new_order",
	MyStatus:        "my_status",
	Help:            "help",
	Back:            "back",
	AddProduct:      "add_product",
	DeleteProduct:   "delete_product",
	AdminBack:       "admin_back",
	EditProduct:     "edit",
	DeleteProductID: "del",
	EditField:       "field",
	Confirm:         "done",
	Reject:          "reject",
	LegacyConfirm:   "confirm",
	LegacyReject:    "reject_legacy",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[Unknown]
	}
	return kindNames[k]
}

// Field is a product attribute the admin can edit.
type Field string

const (
	FieldName  Field = "name"
	FieldPrice Field = "price"
	FieldMax   Field = "max"
	FieldPost  Field = "post"
)

// Fields lists editable fields in menu order.
var Fields = []Field{FieldName, FieldPrice, FieldMax, FieldPost}

// Command is a decoded callback. Only the fields of its Kind are set.
type Command struct {
	Kind       Kind
	UserID     int64
	OrderIndex int
	ProductID  string
	Quantity   int
	Field      Field
}

var static = map[string]Kind{
	"new_order":      NewOrder,
	"my_status":      MyStatus,
	"help":           Help,
	"back":           Back,
	"add_product":    AddProduct,
	"delete_product": DeleteProduct,
	"admin_back":     AdminBack,
}

// Parse decodes raw callback data.
func Parse(data string) (Command, error) {
	if k, ok := static[data]; ok {
		return Command{Kind: k}, nil
	}
	head, rest, ok := strings.Cut(data, "_")
	if !ok || rest == "" {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknown, data)
	}

	switch head {
	case "edit":
		return Command{Kind: EditProduct, ProductID: rest}, nil
	case "del":
		return Command{Kind: DeleteProductID, ProductID: rest}, nil
	case "field":
		for _, f := range Fields {
			if string(f) == rest {
				return Command{Kind: EditField, Field: f}, nil
			}
		}
	case "done":
		user, idx, err := userIndex(rest)
		if err == nil {
			return Command{Kind: Confirm, UserID: user, OrderIndex: idx}, nil
		}
	case "reject":
		if !strings.Contains(rest, "_") {
			if user, err := strconv.ParseInt(rest, 10, 64); err == nil {
				return Command{Kind: LegacyReject, UserID: user}, nil
			}
			break
		}
		user, idx, err := userIndex(rest)
		if err == nil {
			return Command{Kind: Reject, UserID: user, OrderIndex: idx}, nil
		}
	case "confirm":
		if c, err := parseLegacyConfirm(rest); err == nil {
			return c, nil
		}
	}
	return Command{}, fmt.Errorf("%w: %q", ErrUnknown, data)
}

func userIndex(rest string) (int64, int, error) {
	u, i, ok := strings.Cut(rest, "_")
	if !ok {
		return 0, 0, ErrUnknown
	}
	user, err := strconv.ParseInt(u, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	idx, err := strconv.Atoi(i)
	if err != nil || idx < 0 {
		return 0, 0, ErrUnknown
	}
	return user, idx, nil
}

// parseLegacyConfirm reads "{user}_{product}_{qty}". The product id is
// everything between the first and the last separator.
func parseLegacyConfirm(rest string) (Command, error) {
	u, tail, ok := strings.Cut(rest, "_")
	last := strings.LastIndex(tail, "_")
	if !ok || last <= 0 {
		return Command{}, ErrUnknown
	}
	user, err := strconv.ParseInt(u, 10, 64)
	if err != nil {
		return Command{}, err
	}
	qty, err := strconv.Atoi(tail[last+1:])
	if err != nil {
		return Command{}, err
	}
	return Command{Kind: LegacyConfirm, UserID: user, ProductID: tail[:last], Quantity: qty}, nil
}

// Encode renders c as callback data.
func (c Command) Encode() string {
	switch c.Kind {
	case EditProduct:
		return "edit_" + c.ProductID
	case DeleteProductID:
		return "del_" + c.ProductID
	case EditField:
		return "field_" + string(c.Field)
	case Confirm:
		return fmt.Sprintf("done_%d_%d", c.UserID, c.OrderIndex)
	case Reject:
		return fmt.Sprintf("reject_%d_%d", c.UserID, c.OrderIndex)
	case LegacyConfirm:
		return fmt.Sprintf("confirm_%d_%s_%d", c.UserID, c.ProductID, c.Quantity)
	case LegacyReject:
		return fmt.Sprintf("reject_%d", c.UserID)
	case Unknown:
		return ""
	}
	return c.Kind.String()
}

// Name is the handler name used in logs for raw data.
func Name(data string) string {
	c, err := Parse(data)
	if err != nil {
		return Unknown.String()
	}
	return c.Kind.String()
}
