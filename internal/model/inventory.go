package model

// Inventory is the per-product stock aggregate. 0 <= ReservedQuantity <=
// Quantity always (§3). Version backs optimistic updates in the inventory
// service.
type Inventory struct {
	ProductID        int64
	Quantity         int
	ReservedQuantity int
	Version          int64
}

// Available returns the quantity not currently reserved.
func (i *Inventory) Available() int {
	return i.Quantity - i.ReservedQuantity
}
