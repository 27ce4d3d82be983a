package api

import "strings"

// Requests are validated once, at the engine boundary, by their Validate
// method. Handlers trust a validated request.

func validateActor(a Actor) *Error {
	if a.Role == "" {
		return BadRequest("Actor role is required")
	}
	if !a.Role.Valid() {
		return BadRequest("Unknown role %q", a.Role)
	}
	return nil
}

func validateInstanceID(id string) *Error {
	if strings.TrimSpace(id) == "" {
		return BadRequest("Instance ID is required")
	}
	return nil
}

// validate runs the checks in order and returns the first failure as error.
func validate(checks ...*Error) error {
	for _, e := range checks {
		if e != nil {
			return e
		}
	}
	return nil
}

func required(value, label string) *Error {
	if strings.TrimSpace(value) == "" {
		return BadRequest("%s is required", label)
	}
	return nil
}

func positive(value int, label string) *Error {
	if value <= 0 {
		return BadRequest("%s must be positive", label)
	}
	return nil
}

// InstanceRequest targets an existing instance with no further payload.
type InstanceRequest struct {
	Actor      Actor  `json:"actor"`
	InstanceID string `json:"instanceId"`
}

func (r InstanceRequest) Validate() error {
	return validate(validateActor(r.Actor), validateInstanceID(r.InstanceID))
}

// ReasonRequest targets an existing instance with an optional free-text reason.
type ReasonRequest struct {
	Actor      Actor  `json:"actor"`
	InstanceID string `json:"instanceId"`
	Reason     string `json:"reason,omitempty"`
}

func (r ReasonRequest) Validate() error {
	return validate(validateActor(r.Actor), validateInstanceID(r.InstanceID))
}

// CreateSkuRequest creates a SKU blueprint in Draft.
type CreateSkuRequest struct {
	Actor Actor    `json:"actor"`
	Draft SkuDraft `json:"draft"`
}

func (r CreateSkuRequest) Validate() error {
	return validate(
		validateActor(r.Actor),
		required(r.Draft.SkuCode, "SKU Code"),
		required(r.Draft.SkuName, "SKU Name"),
		positive(r.Draft.CellsPerModule, "Cells per module"),
	)
}

// CreatePurchaseOrderRequest creates a purchase order in Draft.
type CreatePurchaseOrderRequest struct {
	Actor Actor              `json:"actor"`
	Draft PurchaseOrderDraft `json:"draft"`
}

func (r CreatePurchaseOrderRequest) Validate() error {
	return validate(
		validateActor(r.Actor),
		required(r.Draft.PONumber, "PO Number"),
		required(r.Draft.SupplierName, "Supplier Name"),
		positive(r.Draft.Quantity, "Quantity"),
	)
}

// AmendPurchaseOrderRequest returns an approved PO to Draft, optionally
// replacing its payload.
type AmendPurchaseOrderRequest struct {
	Actor      Actor               `json:"actor"`
	InstanceID string              `json:"instanceId"`
	Draft      *PurchaseOrderDraft `json:"draft,omitempty"`
}

func (r AmendPurchaseOrderRequest) Validate() error {
	checks := []*Error{validateActor(r.Actor), validateInstanceID(r.InstanceID)}
	if r.Draft != nil {
		checks = append(checks,
			required(r.Draft.PONumber, "PO Number"),
			required(r.Draft.SupplierName, "Supplier Name"),
			positive(r.Draft.Quantity, "Quantity"),
		)
	}
	return validate(checks...)
}

// CreateReceiptRequest records an inbound receipt.
type CreateReceiptRequest struct {
	Actor Actor        `json:"actor"`
	Draft ReceiptDraft `json:"draft"`
}

func (r CreateReceiptRequest) Validate() error {
	return validate(
		validateActor(r.Actor),
		required(r.Draft.GRNNumber, "GRN Number"),
		required(r.Draft.SupplierName, "Supplier Name"),
		positive(r.Draft.QuantityReceived, "Quantity received"),
	)
}

// SerializeReceiptRequest assigns serial numbers to every received unit.
// When Serials is empty the engine generates QuantityReceived serials
// using SerialPrefix (or the material code).
type SerializeReceiptRequest struct {
	Actor        Actor    `json:"actor"`
	InstanceID   string   `json:"instanceId"`
	Serials      []string `json:"serials,omitempty"`
	SerialPrefix string   `json:"serialPrefix,omitempty"`
}

func (r SerializeReceiptRequest) Validate() error {
	if err := validate(validateActor(r.Actor), validateInstanceID(r.InstanceID)); err != nil {
		return err
	}
	for i, s := range r.Serials {
		if strings.TrimSpace(s) == "" {
			return BadRequest("Serial at position %d is empty", i+1)
		}
	}
	return nil
}

// ItemResult is a per-item QC outcome.
type ItemResult struct {
	SerialNumber string     `json:"serialNumber"`
	Status       ItemStatus `json:"status"`
}

// CompleteQcRequest records the QC outcome for a receipt.
type CompleteQcRequest struct {
	Actor       Actor        `json:"actor"`
	InstanceID  string       `json:"instanceId"`
	Decision    QcDecision   `json:"decision"`
	Remarks     string       `json:"remarks,omitempty"`
	ItemResults []ItemResult `json:"itemResults,omitempty"`

	// PassQuantity classifies the first N items as PASSED and the rest as
	// BLOCKED. Ignored when ItemResults is non-empty.
	PassQuantity *int `json:"passQuantity,omitempty"`
}

func (r CompleteQcRequest) Validate() error {
	if err := validate(validateActor(r.Actor), validateInstanceID(r.InstanceID)); err != nil {
		return err
	}
	if r.Decision != QcPass && r.Decision != QcFail {
		return BadRequest("QC decision must be PASS or FAIL")
	}
	for _, ir := range r.ItemResults {
		if strings.TrimSpace(ir.SerialNumber) == "" {
			return BadRequest("Item result serial is required")
		}
		switch ir.Status {
		case ItemPassed, ItemBlocked, ItemFailed:
		default:
			return BadRequest("Invalid QC status %q for %s", ir.Status, ir.SerialNumber)
		}
	}
	if r.PassQuantity != nil && *r.PassQuantity < 0 {
		return BadRequest("Pass quantity cannot be negative")
	}
	return nil
}

// CreateBatchRequest plans a batch in Draft.
type CreateBatchRequest struct {
	Actor Actor      `json:"actor"`
	Draft BatchDraft `json:"draft"`
}

func (r CreateBatchRequest) Validate() error {
	return validate(
		validateActor(r.Actor),
		required(r.Draft.BatchName, "Batch Name"),
		required(r.Draft.SkuCode, "SKU Code"),
		positive(r.Draft.PlannedQuantity, "Planned quantity"),
	)
}

// UpdateBatchDraftRequest edits a Draft batch. Zero values leave the
// corresponding field unchanged.
type UpdateBatchDraftRequest struct {
	Actor           Actor  `json:"actor"`
	InstanceID      string `json:"instanceId"`
	BatchName       string `json:"batchName,omitempty"`
	SkuCode         string `json:"skuCode,omitempty"`
	PlannedQuantity int    `json:"plannedQuantity,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (r UpdateBatchDraftRequest) Validate() error {
	if err := validate(validateActor(r.Actor), validateInstanceID(r.InstanceID)); err != nil {
		return err
	}
	if r.PlannedQuantity < 0 {
		return BadRequest("Planned quantity must be positive")
	}
	return nil
}

// CellsRequest adds or removes cell serials on a batch or module.
type CellsRequest struct {
	Actor      Actor    `json:"actor"`
	InstanceID string   `json:"instanceId"`
	Serials    []string `json:"serials"`
}

func (r CellsRequest) Validate() error {
	if err := validate(validateActor(r.Actor), validateInstanceID(r.InstanceID)); err != nil {
		return err
	}
	if len(r.Serials) == 0 {
		return BadRequest("At least one cell serial is required")
	}
	for i, s := range r.Serials {
		if strings.TrimSpace(s) == "" {
			return BadRequest("Cell serial at position %d is empty", i+1)
		}
	}
	return nil
}

// CreateModuleRequest starts a module assembly session for a batch.
type CreateModuleRequest struct {
	Actor           Actor  `json:"actor"`
	BatchID         string `json:"batchId"`
	AssemblyStation string `json:"assemblyStation,omitempty"`
}

func (r CreateModuleRequest) Validate() error {
	return validate(validateActor(r.Actor), required(r.BatchID, "Batch ID"))
}
