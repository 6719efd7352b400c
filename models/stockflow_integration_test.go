package models_test

import (
	"errors"
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/stockflow_backend/models"
	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"github.com/shopspring/decimal"
)

func price(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestDirectSaleDebitsStockAtomically(t *testing.T) {
	ctx := setupIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Office Chair",
		PurchasePrice: decimal.NewFromInt(30),
		SalePrice:     decimal.NewFromInt(50),
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	walkIn, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Walk-in Regular"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	// Two lines for the same product, one without an explicit price: they
	// must merge into one line of 3 at the product's sale price. The customer
	// reference is sent on purpose; the server must drop it on a direct sale.
	order, alerts, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		IsDirectSale: true,
		CustomerId:   &walkIn.ID,
		Lines: []models.NewCustomerOrderLine{
			{ProductId: product.ID, Quantity: 2, UnitPrice: price("50")},
			{ProductId: product.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateCustomerOrder: %v", err)
	}

	if order.Status != models.OrderStatusValidated {
		t.Errorf("direct sale status = %s, want VALIDATED", order.Status)
	}
	if order.CustomerId != nil {
		t.Errorf("direct sale kept customer %d, want nil", *order.CustomerId)
	}
	if !order.IsPaid {
		t.Errorf("direct sale should be paid")
	}
	if order.FulfillmentMode != models.FulfillmentInStore {
		t.Errorf("direct sale fulfillment = %s, want IN_STORE", order.FulfillmentMode)
	}
	if len(order.Lines) != 1 || order.Lines[0].Quantity != 3 {
		t.Fatalf("lines = %+v, want one merged line of 3", order.Lines)
	}
	// 3 x 50 = 150, plus default 20% tax = 180.00.
	if order.TotalAmount.StringFixed(2) != "180.00" {
		t.Errorf("total = %s, want 180.00", order.TotalAmount.StringFixed(2))
	}
	// Stock 10 -> 7, above the default threshold of 5: no alert yet.
	if len(alerts) != 0 {
		t.Errorf("alerts = %+v, want none", alerts)
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.StockQuantity != 7 {
		t.Errorf("stock = %d, want 7", after.StockQuantity)
	}

	movements, err := models.ListStockMovements(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("ListStockMovements: %v", err)
	}
	// Newest first: the sale's OUT, then the opening IN.
	if len(movements) != 2 {
		t.Fatalf("movements = %d, want 2", len(movements))
	}
	if movements[0].MovementType != models.MovementTypeOut || movements[0].Quantity != -3 {
		t.Errorf("debit movement = %s %d, want OUT -3", movements[0].MovementType, movements[0].Quantity)
	}
	if movements[0].CustomerOrderId == nil || *movements[0].CustomerOrderId != order.ID {
		t.Errorf("debit movement not linked to order %d", order.ID)
	}

	rec, err := models.ReconcileProductStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("ReconcileProductStock: %v", err)
	}
	if !rec.InSync {
		t.Fatalf("ledger sum %d != cached stock %d", rec.LedgerSum, rec.CachedStock)
	}

	// A second sale takes stock to 4, at or below the threshold: alert.
	_, alerts, err = models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		IsDirectSale: true,
		Lines:        []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 3, UnitPrice: price("50")}},
	})
	if err != nil {
		t.Fatalf("second CreateCustomerOrder: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ProductId != product.ID || alerts[0].StockQuantity != 4 {
		t.Fatalf("alerts = %+v, want one for product %d at stock 4", alerts, product.ID)
	}
}

func TestDirectSaleInsufficientStockRollsBackEverything(t *testing.T) {
	ctx := setupIntegration(t)

	plenty, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Notebook",
		PurchasePrice: decimal.NewFromInt(1),
		SalePrice:     decimal.NewFromInt(3),
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	scarce, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Fountain Pen",
		PurchasePrice: decimal.NewFromInt(10),
		SalePrice:     decimal.NewFromInt(25),
		StockQuantity: 1,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	_, _, err = models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		IsDirectSale: true,
		Lines: []models.NewCustomerOrderLine{
			{ProductId: plenty.ID, Quantity: 2, UnitPrice: price("3")},
			{ProductId: scarce.ID, Quantity: 5, UnitPrice: price("25")},
		},
	})
	var insufficient *models.StockInsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want StockInsufficientError", err)
	}
	if insufficient.ProductId != scarce.ID || insufficient.Available != 1 || insufficient.Requested != 5 {
		t.Fatalf("error detail = %+v", insufficient)
	}

	// Nothing moved: both counters intact, no order row, no OUT movements.
	for _, p := range []struct {
		id   int
		want int
	}{{plenty.ID, 10}, {scarce.ID, 1}} {
		got, err := models.GetProduct(ctx, p.id)
		if err != nil {
			t.Fatalf("GetProduct: %v", err)
		}
		if got.StockQuantity != p.want {
			t.Errorf("product %d stock = %d, want %d", p.id, got.StockQuantity, p.want)
		}
	}
	orders, err := models.ListCustomerOrders(ctx, "", 10, 0)
	if err != nil {
		t.Fatalf("ListCustomerOrders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("orders = %d, want 0 after rollback", len(orders))
	}
}

func TestConcurrentDirectSalesNeverOversell(t *testing.T) {
	ctx := setupIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Desk Lamp",
		PurchasePrice: decimal.NewFromInt(8),
		SalePrice:     decimal.NewFromInt(20),
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// Two concurrent sales of 6 against a stock of 10: exactly one may win.
	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
				IsDirectSale: true,
				Lines:        []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 6, UnitPrice: price("20")}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, failed int
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		var insufficient *models.StockInsufficientError
		if !errors.As(err, &insufficient) {
			t.Fatalf("unexpected error: %v", err)
		}
		failed++
	}
	if ok != 1 || failed != 1 {
		t.Fatalf("results = %d ok / %d insufficient, want 1/1", ok, failed)
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.StockQuantity != 4 {
		t.Fatalf("stock = %d, want 4", after.StockQuantity)
	}
	rec, err := models.ReconcileProductStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("ReconcileProductStock: %v", err)
	}
	if !rec.InSync {
		t.Fatalf("ledger sum %d != cached stock %d", rec.LedgerSum, rec.CachedStock)
	}
}

func TestCancelAndDeleteGuards(t *testing.T) {
	ctx := setupIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Stapler",
		PurchasePrice: decimal.NewFromInt(2),
		SalePrice:     decimal.NewFromInt(6),
		StockQuantity: 5,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Casey Buyer"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	newDraft := func() *models.CustomerOrder {
		order, _, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
			CustomerId: &customer.ID,
			Lines:      []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 1, UnitPrice: price("6")}},
		})
		if err != nil {
			t.Fatalf("CreateCustomerOrder: %v", err)
		}
		return order
	}

	// Cancelling twice fails with the dedicated sentinel.
	order := newDraft()
	if _, err := models.CancelCustomerOrder(ctx, order.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := models.CancelCustomerOrder(ctx, order.ID); !errors.Is(err, models.ErrAlreadyCancelled) {
		t.Fatalf("second cancel err = %v, want ErrAlreadyCancelled", err)
	}
	// Paying a cancelled order fails the same way.
	if _, err := models.MarkCustomerOrderPaid(ctx, order.ID); !errors.Is(err, models.ErrAlreadyCancelled) {
		t.Fatalf("pay cancelled err = %v, want ErrAlreadyCancelled", err)
	}

	// A validated order cannot be deleted.
	order = newDraft()
	if _, err := models.ValidateCustomerOrder(ctx, order.ID); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := models.DeleteCustomerOrder(ctx, order.ID); !errors.Is(err, models.ErrNotDeletable) {
		t.Fatalf("delete validated err = %v, want ErrNotDeletable", err)
	}

	// Neither can a paid one, whatever its status.
	order = newDraft()
	if _, err := models.MarkCustomerOrderPaid(ctx, order.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := models.DeleteCustomerOrder(ctx, order.ID); !errors.Is(err, models.ErrNotDeletable) {
		t.Fatalf("delete paid err = %v, want ErrNotDeletable", err)
	}

	// A plain draft deletes cleanly, lines included.
	order = newDraft()
	can, err := models.CanDeleteCustomerOrder(ctx, order.ID)
	if err != nil || !can {
		t.Fatalf("CanDeleteCustomerOrder = %v, %v; want true", can, err)
	}
	if err := models.DeleteCustomerOrder(ctx, order.ID); err != nil {
		t.Fatalf("delete draft: %v", err)
	}
	if _, err := models.GetCustomerOrder(ctx, order.ID); err == nil {
		t.Fatalf("order still present after delete")
	}

	// Draft deletion never touches stock.
	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.StockQuantity != 5 {
		t.Fatalf("stock = %d, want untouched 5", after.StockQuantity)
	}
}

func TestCancelRestocksWhenEnabled(t *testing.T) {
	ctx := setupIntegration(t)
	t.Setenv("RESTOCK_ON_CANCEL", "1")

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Monitor Stand",
		PurchasePrice: decimal.NewFromInt(12),
		SalePrice:     decimal.NewFromInt(35),
		StockQuantity: 10,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	order, _, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		IsDirectSale: true,
		Lines:        []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 3, UnitPrice: price("35")}},
	})
	if err != nil {
		t.Fatalf("CreateCustomerOrder: %v", err)
	}

	if _, err := models.CancelCustomerOrder(ctx, order.ID); err != nil {
		t.Fatalf("CancelCustomerOrder: %v", err)
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.StockQuantity != 10 {
		t.Fatalf("stock = %d, want 10 after restock", after.StockQuantity)
	}

	// The ledger keeps both sides: the original OUT and a compensating IN.
	movements, err := models.ListStockMovements(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("ListStockMovements: %v", err)
	}
	if len(movements) != 3 {
		t.Fatalf("movements = %d, want 3 (opening, debit, restock)", len(movements))
	}
	if movements[0].MovementType != models.MovementTypeIn || movements[0].Quantity != 3 {
		t.Errorf("restock movement = %s %d, want IN 3", movements[0].MovementType, movements[0].Quantity)
	}
	if movements[1].MovementType != models.MovementTypeOut || movements[1].Quantity != -3 {
		t.Errorf("debit movement = %s %d, want OUT -3", movements[1].MovementType, movements[1].Quantity)
	}

	rec, err := models.ReconcileProductStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("ReconcileProductStock: %v", err)
	}
	if !rec.InSync {
		t.Fatalf("ledger sum %d != cached stock %d", rec.LedgerSum, rec.CachedStock)
	}
}

func TestSupplierOrderReceiveCreditsStock(t *testing.T) {
	ctx := setupIntegration(t)

	supplier, err := models.CreateSupplier(ctx, &models.NewSupplier{Name: "Acme Wholesale"})
	if err != nil {
		t.Fatalf("CreateSupplier: %v", err)
	}
	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Printer Paper",
		PurchasePrice: decimal.NewFromInt(4),
		SalePrice:     decimal.NewFromInt(9),
		StockQuantity: 2,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	po, err := models.CreateSupplierOrder(ctx, &models.NewSupplierOrder{
		SupplierId: supplier.ID,
		Lines: []models.NewSupplierOrderLine{
			{ProductId: product.ID, Quantity: 20, UnitPrice: decimal.NewFromInt(4)},
		},
	})
	if err != nil {
		t.Fatalf("CreateSupplierOrder: %v", err)
	}
	if po.Status != models.SupplierOrderStatusDraft {
		t.Fatalf("status = %s, want DRAFT", po.Status)
	}

	// Receiving a draft is not allowed; it must be validated first.
	if _, err := models.ReceiveSupplierOrder(ctx, po.ID); err == nil {
		t.Fatalf("receiving a draft supplier order should fail")
	}
	if _, err := models.ValidateSupplierOrder(ctx, po.ID); err != nil {
		t.Fatalf("ValidateSupplierOrder: %v", err)
	}

	received, err := models.ReceiveSupplierOrder(ctx, po.ID)
	if err != nil {
		t.Fatalf("ReceiveSupplierOrder: %v", err)
	}
	if received.Status != models.SupplierOrderStatusDelivered {
		t.Errorf("status = %s, want DELIVERED", received.Status)
	}
	for _, line := range received.Lines {
		if !line.IsDelivered {
			t.Errorf("line %d not marked delivered", line.ID)
		}
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.StockQuantity != 22 {
		t.Errorf("stock = %d, want 22", after.StockQuantity)
	}

	movements, err := models.ListStockMovements(ctx, product.ID, 10)
	if err != nil {
		t.Fatalf("ListStockMovements: %v", err)
	}
	if movements[0].MovementType != models.MovementTypeIn || movements[0].Quantity != 20 {
		t.Errorf("inbound movement = %s %d, want IN 20", movements[0].MovementType, movements[0].Quantity)
	}
	if movements[0].SupplierOrderId == nil || *movements[0].SupplierOrderId != po.ID {
		t.Errorf("inbound movement not linked to supplier order %d", po.ID)
	}

	// A delivered order cannot be cancelled, and cancelling twice is its
	// own failure on the ones that can.
	if _, err := models.CancelSupplierOrder(ctx, po.ID); err == nil {
		t.Fatalf("cancelling a delivered supplier order should fail")
	}
}

func TestDailyStatisticsRecomputeIsIdempotent(t *testing.T) {
	ctx := setupIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "USB Cable",
		PurchasePrice: decimal.NewFromInt(1),
		SalePrice:     decimal.NewFromInt(5),
		StockQuantity: 50,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Jordan Doe"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	// One direct sale (2 x 5 x 1.2 = 12.00) and one draft customer order
	// (4 x 5 x 1.2 = 24.00).
	if _, _, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		IsDirectSale: true,
		Lines:        []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 2, UnitPrice: price("5")}},
	}); err != nil {
		t.Fatalf("direct sale: %v", err)
	}
	if _, _, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		CustomerId: &customer.ID,
		Lines:      []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 4, UnitPrice: price("5")}},
	}); err != nil {
		t.Fatalf("customer order: %v", err)
	}

	fetchToday := func() *models.DailyStatistic {
		stats, err := models.GetStatisticsRange(ctx, 1)
		if err != nil {
			t.Fatalf("GetStatisticsRange: %v", err)
		}
		if len(stats) != 1 {
			t.Fatalf("rows for today = %d, want exactly 1", len(stats))
		}
		return stats[0]
	}

	if err := models.UpdateDailyStatistics(ctx); err != nil {
		t.Fatalf("UpdateDailyStatistics: %v", err)
	}
	first := fetchToday()

	if first.DirectSaleCount != 1 || first.CustomerOrderCount != 1 || first.SaleCount != 2 {
		t.Errorf("counts = %d direct / %d customer / %d total, want 1/1/2",
			first.DirectSaleCount, first.CustomerOrderCount, first.SaleCount)
	}
	if first.DirectSaleRevenue.StringFixed(2) != "12.00" {
		t.Errorf("direct revenue = %s, want 12.00", first.DirectSaleRevenue.StringFixed(2))
	}
	if first.CustomerOrderRevenue.StringFixed(2) != "24.00" {
		t.Errorf("customer revenue = %s, want 24.00", first.CustomerOrderRevenue.StringFixed(2))
	}
	if first.TotalRevenue.StringFixed(2) != "36.00" {
		t.Errorf("total revenue = %s, want 36.00", first.TotalRevenue.StringFixed(2))
	}
	if first.NewCustomerCount != 1 {
		t.Errorf("new customers = %d, want 1", first.NewCustomerCount)
	}
	if first.ActiveProductCount != 1 {
		t.Errorf("active products = %d, want 1", first.ActiveProductCount)
	}

	// Running the recompute again must converge on the same row, not a
	// second one and not drifted numbers.
	if err := models.UpdateDailyStatistics(ctx); err != nil {
		t.Fatalf("second UpdateDailyStatistics: %v", err)
	}
	second := fetchToday()

	if second.ID != first.ID {
		t.Fatalf("recompute created a new row (id %d -> %d)", first.ID, second.ID)
	}
	if second.SaleCount != first.SaleCount ||
		second.DirectSaleCount != first.DirectSaleCount ||
		second.CustomerOrderCount != first.CustomerOrderCount ||
		!second.TotalRevenue.Equal(first.TotalRevenue) ||
		second.NewCustomerCount != first.NewCustomerCount ||
		second.StockMovementCount != first.StockMovementCount {
		t.Fatalf("recompute drifted: first=%+v second=%+v", first, second)
	}
}

func TestAuthenticateUser(t *testing.T) {
	ctx := setupIntegration(t)

	user, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Sam Seller",
		Email:    "Sam@Test.Local",
		Password: "hunter2-long",
		Role:     models.UserRoleSeller,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Email is stored and matched case-insensitively.
	token, authed, err := models.AuthenticateUser(ctx, "sam@test.local", "hunter2-long")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if token == "" || authed.ID != user.ID {
		t.Fatalf("token/user = %q/%d, want token for user %d", token, authed.ID, user.ID)
	}
	if authed.LastActivityAt == nil {
		t.Errorf("login should record last activity")
	}

	// Unknown email and wrong password fail with the same opaque message.
	_, _, wrongPw := models.AuthenticateUser(ctx, "sam@test.local", "nope-nope")
	_, _, unknown := models.AuthenticateUser(ctx, "ghost@test.local", "hunter2-long")
	if wrongPw == nil || unknown == nil {
		t.Fatalf("bad credentials must fail")
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("credential errors differ: %q vs %q", wrongPw, unknown)
	}

	// Duplicate email is rejected at registration.
	if _, err := models.CreateUser(ctx, &models.NewUser{
		Name:     "Other",
		Email:    "sam@test.local",
		Password: "something-else",
		Role:     models.UserRoleSeller,
	}); err == nil {
		t.Fatalf("duplicate email should be rejected")
	}

	// Admin user management: fetch, promote, and reject garbage roles.
	fetched, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if fetched.Email != "sam@test.local" {
		t.Errorf("fetched email = %q, want sam@test.local", fetched.Email)
	}
	promoted, err := models.UpdateUserRole(ctx, user.ID, models.UserRoleManager)
	if err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	if promoted.Role != models.UserRoleManager {
		t.Errorf("role = %s, want manager", promoted.Role)
	}
	if _, err := models.UpdateUserRole(ctx, user.ID, "owner"); err == nil {
		t.Fatalf("unknown role should be rejected")
	}
	if _, err := models.GetUser(ctx, 99999); err == nil {
		t.Fatalf("missing user should not be found")
	}
}

func TestOrderTotalRefreshMatchesStoredLines(t *testing.T) {
	ctx := setupIntegration(t)

	tax, err := models.CreateTax(ctx, &models.NewTax{Name: "Reduced", Rate: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("CreateTax: %v", err)
	}
	taxes, err := models.ListTaxes(ctx)
	if err != nil {
		t.Fatalf("ListTaxes: %v", err)
	}
	if len(taxes) != 1 || taxes[0].ID != tax.ID {
		t.Fatalf("taxes = %+v, want the one created", taxes)
	}

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:    "Archive Box",
		PurchasePrice:  decimal.NewFromInt(2),
		SalePrice:      decimal.NewFromInt(8),
		StockQuantity:  6,
		AlertThreshold: utils.NewInt(2),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	customer, err := models.CreateCustomer(ctx, &models.NewCustomer{Name: "Riley Vendor"})
	if err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}

	order, _, err := models.CreateCustomerOrder(ctx, &models.NewCustomerOrder{
		CustomerId: &customer.ID,
		TaxId:      &tax.ID,
		Lines:      []models.NewCustomerOrderLine{{ProductId: product.ID, Quantity: 3, UnitPrice: price("8")}},
	})
	if err != nil {
		t.Fatalf("CreateCustomerOrder: %v", err)
	}
	// 3 x 8 = 24, plus 10% tax = 26.40.
	if order.TotalAmount.StringFixed(2) != "26.40" {
		t.Fatalf("total = %s, want 26.40", order.TotalAmount.StringFixed(2))
	}

	// The total is a pure function of the stored lines, so re-deriving it
	// must land on the same value.
	refreshed, err := models.RefreshCustomerOrderTotal(ctx, order.ID)
	if err != nil {
		t.Fatalf("RefreshCustomerOrderTotal: %v", err)
	}
	if !refreshed.TotalAmount.Equal(order.TotalAmount) {
		t.Fatalf("refreshed total = %s, want %s", refreshed.TotalAmount, order.TotalAmount)
	}

	// The audit journal records who did it, by id and by name.
	entries, err := models.RecentActivity(ctx, 5)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no activity entries recorded")
	}
	if entries[0].UserName != "Test Admin" {
		t.Errorf("activity user name = %q, want Test Admin", entries[0].UserName)
	}
}

func TestStockAdjustmentGuardsAndLedger(t *testing.T) {
	ctx := setupIntegration(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Designation:   "Label Roll",
		PurchasePrice: decimal.NewFromInt(2),
		SalePrice:     decimal.NewFromInt(4),
		StockQuantity: 3,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// A negative delta may not take the counter below zero.
	_, err = models.CreateStockAdjustment(ctx, &models.NewStockAdjustment{
		ProductId: product.ID,
		Quantity:  -5,
		Reason:    "damage writeoff",
	})
	var insufficient *models.StockInsufficientError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want StockInsufficientError", err)
	}

	// Reason is mandatory.
	if _, err := models.CreateStockAdjustment(ctx, &models.NewStockAdjustment{
		ProductId: product.ID,
		Quantity:  1,
	}); err == nil {
		t.Fatalf("adjustment without reason should fail")
	}

	movement, err := models.CreateStockAdjustment(ctx, &models.NewStockAdjustment{
		ProductId: product.ID,
		Quantity:  -2,
		Reason:    "damage writeoff",
	})
	if err != nil {
		t.Fatalf("CreateStockAdjustment: %v", err)
	}
	if movement.MovementType != models.MovementTypeAdjustment || movement.Quantity != -2 {
		t.Fatalf("movement = %s %d, want ADJUSTMENT -2", movement.MovementType, movement.Quantity)
	}

	after, err := models.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if after.StockQuantity != 1 {
		t.Fatalf("stock = %d, want 1", after.StockQuantity)
	}
	rec, err := models.ReconcileProductStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("ReconcileProductStock: %v", err)
	}
	if !rec.InSync {
		t.Fatalf("ledger sum %d != cached stock %d", rec.LedgerSum, rec.CachedStock)
	}
}
