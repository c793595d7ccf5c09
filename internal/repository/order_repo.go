package repository

import (
	"errors"
	"time"

	"github.com/exchange-settlement/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository handles exchange order data access
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new OrderRepository
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Create creates a new order
func (r *OrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(id uint) (*models.Order, error) {
	return r.getByID(r.db, id)
}

// GetByIDForUpdate retrieves an order by ID and locks its row
func (r *OrderRepository) GetByIDForUpdate(id uint) (*models.Order, error) {
	return r.getByID(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *OrderRepository) getByID(db *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	result := db.First(&order, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, result.Error
	}
	return &order, nil
}

// GetByUserIDPaginated retrieves a user's orders, optionally filtered by status
func (r *OrderRepository) GetByUserIDPaginated(userID uint, status models.OrderStatus, page, pageSize int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.Model(&models.Order{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&orders)

	return orders, total, result.Error
}

// Transition moves an order from one status to another. The status guard in
// the WHERE clause makes a concurrent second transition a no-op; it returns
// false in that case.
func (r *OrderRepository) Transition(id uint, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to.IsTerminal() {
		updates["closed_at"] = time.Now()
	}
	result := r.db.Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FuturesOrderRepository handles futures order data access
type FuturesOrderRepository struct {
	db *gorm.DB
}

// NewFuturesOrderRepository creates a new FuturesOrderRepository
func NewFuturesOrderRepository(db *gorm.DB) *FuturesOrderRepository {
	return &FuturesOrderRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *FuturesOrderRepository) WithTx(tx *gorm.DB) *FuturesOrderRepository {
	return &FuturesOrderRepository{db: tx}
}

// Create creates a new futures order
func (r *FuturesOrderRepository) Create(order *models.FuturesOrder) error {
	return r.db.Create(order).Error
}

// GetByID retrieves a futures order by ID
func (r *FuturesOrderRepository) GetByID(id uint) (*models.FuturesOrder, error) {
	return r.getByID(r.db, id)
}

// GetByIDForUpdate retrieves a futures order by ID and locks its row
func (r *FuturesOrderRepository) GetByIDForUpdate(id uint) (*models.FuturesOrder, error) {
	return r.getByID(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *FuturesOrderRepository) getByID(db *gorm.DB, id uint) (*models.FuturesOrder, error) {
	var order models.FuturesOrder
	result := db.First(&order, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, result.Error
	}
	return &order, nil
}

// GetOpenOrdersBySymbol retrieves a user's OPEN futures orders for a symbol
func (r *FuturesOrderRepository) GetOpenOrdersBySymbol(userID uint, symbol string) ([]models.FuturesOrder, error) {
	var orders []models.FuturesOrder
	result := r.db.Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, models.OrderStatusOpen).
		Order("created_at ASC").
		Find(&orders)
	return orders, result.Error
}

// GetByUserIDPaginated retrieves a user's futures orders, optionally filtered by status
func (r *FuturesOrderRepository) GetByUserIDPaginated(userID uint, status models.OrderStatus, page, pageSize int) ([]models.FuturesOrder, int64, error) {
	var orders []models.FuturesOrder
	var total int64

	query := r.db.Model(&models.FuturesOrder{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := query.Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&orders)

	return orders, total, result.Error
}

// UpdateFill records a fill and optionally closes the order
func (r *FuturesOrderRepository) UpdateFill(id uint, filled, remaining decimal.Decimal, status models.OrderStatus) error {
	updates := map[string]interface{}{
		"filled":     filled,
		"remaining":  remaining,
		"status":     status,
		"updated_at": time.Now(),
	}
	if status.IsTerminal() {
		updates["closed_at"] = time.Now()
	}
	return r.db.Model(&models.FuturesOrder{}).Where("id = ?", id).Updates(updates).Error
}

// Transition moves a futures order from one status to another, see OrderRepository.Transition
func (r *FuturesOrderRepository) Transition(id uint, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to.IsTerminal() {
		updates["closed_at"] = time.Now()
	}
	result := r.db.Model(&models.FuturesOrder{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
