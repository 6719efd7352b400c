package models

type CustomerOrderStatus string

const (
	OrderStatusDraft     CustomerOrderStatus = "DRAFT"
	OrderStatusValidated CustomerOrderStatus = "VALIDATED"
	OrderStatusDelivered CustomerOrderStatus = "DELIVERED"
	OrderStatusCancelled CustomerOrderStatus = "CANCELLED"
)

type SupplierOrderStatus string

const (
	SupplierOrderStatusDraft     SupplierOrderStatus = "DRAFT"
	SupplierOrderStatusValidated SupplierOrderStatus = "VALIDATED"
	SupplierOrderStatusDelivered SupplierOrderStatus = "DELIVERED"
	SupplierOrderStatusCancelled SupplierOrderStatus = "CANCELLED"
)

type MovementType string

const (
	MovementTypeIn         MovementType = "IN"
	MovementTypeOut        MovementType = "OUT"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

type FulfillmentMode string

const (
	FulfillmentInStore  FulfillmentMode = "IN_STORE"
	FulfillmentDelivery FulfillmentMode = "DELIVERY"
)

type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleSeller  UserRole = "seller"
)

type UnitOfMeasure string

const (
	UnitPiece UnitOfMeasure = "UNIT"
	UnitKg    UnitOfMeasure = "KG"
	UnitLiter UnitOfMeasure = "LITER"
	UnitMeter UnitOfMeasure = "METER"
	UnitBox   UnitOfMeasure = "BOX"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleSeller:
		return true
	}
	return false
}

func (m FulfillmentMode) Valid() bool {
	switch m {
	case FulfillmentInStore, FulfillmentDelivery:
		return true
	}
	return false
}

func (u UnitOfMeasure) Valid() bool {
	switch u {
	case UnitPiece, UnitKg, UnitLiter, UnitMeter, UnitBox:
		return true
	}
	return false
}
