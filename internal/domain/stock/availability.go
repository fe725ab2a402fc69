package stock

import (
	"context"
	"errors"
)

// StockReader — часть Gateway, нужная для проверки остатков.
type StockReader interface {
	FindWarehouseByName(ctx context.Context, name string) (*Warehouse, error)
	FindProductByCode(ctx context.Context, code string) (*Product, error)
	ReadStockQuantity(ctx context.Context, productID, locationID int64) (float64, error)
}

// AvailabilityChecker отвечает, хватает ли товара на складе.
// Неизвестный склад или товар — это "нет в наличии", а не ошибка.
type AvailabilityChecker struct {
	gw StockReader
}

func NewAvailabilityChecker(gw StockReader) *AvailabilityChecker {
	return &AvailabilityChecker{gw: gw}
}

// Check — по названию склада и артикулу.
func (c *AvailabilityChecker) Check(ctx context.Context, code, warehouseName string, qty float64) (Availability, error) {
	wh, err := c.gw.FindWarehouseByName(ctx, warehouseName)
	if err != nil {
		return notFound(err)
	}
	return c.CheckAt(ctx, code, wh.StockLocationID, qty)
}

// CheckAt — по уже известной локации склада.
func (c *AvailabilityChecker) CheckAt(ctx context.Context, code string, locationID int64, qty float64) (Availability, error) {
	p, err := c.gw.FindProductByCode(ctx, code)
	if err != nil {
		return notFound(err)
	}
	return c.CheckProduct(ctx, p.ID, locationID, qty)
}

// CheckProduct — товар уже найден, остаётся прочитать остаток.
func (c *AvailabilityChecker) CheckProduct(ctx context.Context, productID, locationID int64, qty float64) (Availability, error) {
	onHand, err := c.gw.ReadStockQuantity(ctx, productID, locationID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{Available: onHand >= qty, OnHand: onHand}, nil
}

func notFound(err error) (Availability, error) {
	var (
		whErr   *WarehouseNotFoundError
		prodErr *ProductNotFoundError
	)
	if errors.As(err, &whErr) || errors.As(err, &prodErr) {
		return Availability{}, nil
	}
	return Availability{}, err
}
