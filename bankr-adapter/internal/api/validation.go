package api

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Checker-Finance/orders/bankr-adapter/internal/orders"
	"github.com/Checker-Finance/orders/pkg/model"
)

// Filter validates q and converts it to a list filter. An empty maker falls
// back to defaultMaker.
func (q *ListQuery) Filter(defaultMaker string) (orders.Filter, error) {
	f := orders.Filter{Maker: strings.TrimSpace(q.Maker)}
	if f.Maker == "" {
		f.Maker = defaultMaker
	}
	if f.Maker == "" {
		return orders.Filter{}, fmt.Errorf("maker is required")
	}
	if !common.IsHexAddress(f.Maker) {
		return orders.Filter{}, fmt.Errorf("maker must be a hex address")
	}
	if q.Type != "" {
		t, err := model.ParseOrderType(q.Type)
		if err != nil {
			return orders.Filter{}, err
		}
		f.Type = t
	}
	if q.Status != "" {
		s, err := model.ParseOrderStatus(q.Status)
		if err != nil {
			return orders.Filter{}, err
		}
		f.Status = s
	}
	return f, nil
}

func validateOrderID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("orderId is required")
	}
	return nil
}
