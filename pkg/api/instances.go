package api

// SkuDraft is the product definition captured by a SKU blueprint.
type SkuDraft struct {
	SkuCode        string  `json:"skuCode"`
	SkuName        string  `json:"skuName"`
	Chemistry      string  `json:"chemistry,omitempty"`
	FormFactor     string  `json:"formFactor,omitempty"`
	NominalVoltage float64 `json:"nominalVoltage,omitempty"`
	CapacityAh     float64 `json:"capacityAh,omitempty"`
	CellsPerModule int     `json:"cellsPerModule"`
	Notes          string  `json:"notes,omitempty"`
}

// SkuInstance is a FLOW-001 instance.
type SkuInstance struct {
	Envelope
	State SkuState `json:"state"`
	Draft SkuDraft `json:"draft"`

	Submissions     []Stamp `json:"submissions,omitempty"`
	Rejections      []Stamp `json:"rejections,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	Approved        *Stamp  `json:"approved,omitempty"`
	Activated       *Stamp  `json:"activated,omitempty"`
	Retired         *Stamp  `json:"retired,omitempty"`
}

func (*SkuInstance) Flow() FlowID        { return FlowSku }
func (s *SkuInstance) StateName() string { return string(s.State) }
func (*SkuInstance) sealed()             {}
func (s *SkuInstance) Clone() Instance {
	c := *s
	c.Submissions = cloneStamps(s.Submissions)
	c.Rejections = cloneStamps(s.Rejections)
	c.Approved = cloneStamp(s.Approved)
	c.Activated = cloneStamp(s.Activated)
	c.Retired = cloneStamp(s.Retired)
	return &c
}

// PurchaseOrderDraft is the commercial payload of a purchase order.
type PurchaseOrderDraft struct {
	PONumber     string `json:"poNumber"`
	SupplierName string `json:"supplierName"`
	MaterialCode string `json:"materialCode,omitempty"`
	SkuCode      string `json:"skuCode,omitempty"`
	Quantity     int    `json:"quantity"`
	UOM          string `json:"uom,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// PurchaseOrderInstance is a FLOW-004 instance.
type PurchaseOrderInstance struct {
	Envelope
	State PurchaseOrderState `json:"state"`
	Draft PurchaseOrderDraft `json:"draft"`

	Submissions     []Stamp `json:"submissions,omitempty"`
	Approvals       []Stamp `json:"approvals,omitempty"`
	Amendments      []Stamp `json:"amendments,omitempty"`
	Rejected        *Stamp  `json:"rejected,omitempty"`
	RejectionReason string  `json:"rejectionReason,omitempty"`
	Issued          *Stamp  `json:"issued,omitempty"`
	Closed          *Stamp  `json:"closed,omitempty"`
}

func (*PurchaseOrderInstance) Flow() FlowID        { return FlowPurchaseOrder }
func (p *PurchaseOrderInstance) StateName() string { return string(p.State) }
func (*PurchaseOrderInstance) sealed()             {}
func (p *PurchaseOrderInstance) Clone() Instance {
	c := *p
	c.Submissions = cloneStamps(p.Submissions)
	c.Approvals = cloneStamps(p.Approvals)
	c.Amendments = cloneStamps(p.Amendments)
	c.Rejected = cloneStamp(p.Rejected)
	c.Issued = cloneStamp(p.Issued)
	c.Closed = cloneStamp(p.Closed)
	return &c
}

// ReceiptDraft is the goods-received note of an inbound receipt.
type ReceiptDraft struct {
	GRNNumber         string `json:"grnNumber"`
	SupplierName      string `json:"supplierName"`
	PONumber          string `json:"poNumber,omitempty"`
	SupplierLotNumber string `json:"supplierLotNumber,omitempty"`
	MaterialCode      string `json:"materialCode,omitempty"`
	QuantityReceived  int    `json:"quantityReceived"`
	UOM               string `json:"uom,omitempty"`
	ReceivedDate      string `json:"receivedDate,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// SerializedItem is one unit of a receipt after serialization.
type SerializedItem struct {
	SerialNumber      string      `json:"serialNumber"`
	Status            ItemStatus  `json:"status"`
	Disposition       Disposition `json:"disposition,omitempty"`
	PONumber          string      `json:"poNumber,omitempty"`
	SupplierLotNumber string      `json:"supplierLotNumber,omitempty"`
}

// ReceiptInstance is a FLOW-003 instance.
type ReceiptInstance struct {
	Envelope
	State           ReceiptState     `json:"state"`
	Draft           ReceiptDraft     `json:"draft"`
	SerializedItems []SerializedItem `json:"serializedItems,omitempty"`

	Serialized  *Stamp     `json:"serialized,omitempty"`
	QcSubmitted *Stamp     `json:"qcSubmitted,omitempty"`
	QC          *Stamp     `json:"qc,omitempty"`
	QcDecision  QcDecision `json:"qcDecision,omitempty"`
	QcRemarks   string     `json:"qcRemarks,omitempty"`
	Blocked     *Stamp     `json:"blocked,omitempty"`
	BlockReason string     `json:"blockReason,omitempty"`
	Released    *Stamp     `json:"released,omitempty"`
	Scrapped    *Stamp     `json:"scrapped,omitempty"`
	ScrapReason string     `json:"scrapReason,omitempty"`
}

func (*ReceiptInstance) Flow() FlowID        { return FlowReceipt }
func (r *ReceiptInstance) StateName() string { return string(r.State) }
func (*ReceiptInstance) sealed()             {}
func (r *ReceiptInstance) Clone() Instance {
	c := *r
	if r.SerializedItems != nil {
		c.SerializedItems = make([]SerializedItem, len(r.SerializedItems))
		copy(c.SerializedItems, r.SerializedItems)
	}
	c.Serialized = cloneStamp(r.Serialized)
	c.QcSubmitted = cloneStamp(r.QcSubmitted)
	c.QC = cloneStamp(r.QC)
	c.Blocked = cloneStamp(r.Blocked)
	c.Released = cloneStamp(r.Released)
	c.Scrapped = cloneStamp(r.Scrapped)
	return &c
}

// BatchDraft is the plan of a production batch.
type BatchDraft struct {
	BatchName       string `json:"batchName"`
	SkuCode         string `json:"skuCode"`
	PlannedQuantity int    `json:"plannedQuantity"`

	// AllocatedCells is the manual allocation set, in selection order.
	AllocatedCells []string `json:"allocatedInventoryIds"`

	// CellsPerModule and RequiredCells are frozen from the SKU on approval.
	CellsPerModule int    `json:"cellsPerModule,omitempty"`
	RequiredCells  int    `json:"requiredCells,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// BatchInstance is a FLOW-002 instance.
type BatchInstance struct {
	Envelope
	State BatchState `json:"state"`
	Draft BatchDraft `json:"draft"`

	Approved     *Stamp `json:"approved,omitempty"`
	Started      *Stamp `json:"started,omitempty"`
	Completed    *Stamp `json:"completed,omitempty"`
	Cancelled    *Stamp `json:"cancelled,omitempty"`
	CancelReason string `json:"cancelReason,omitempty"`
}

func (*BatchInstance) Flow() FlowID        { return FlowBatch }
func (b *BatchInstance) StateName() string { return string(b.State) }
func (*BatchInstance) sealed()             {}
func (b *BatchInstance) Clone() Instance {
	c := *b
	c.Draft.AllocatedCells = cloneStrings(b.Draft.AllocatedCells)
	c.Approved = cloneStamp(b.Approved)
	c.Started = cloneStamp(b.Started)
	c.Completed = cloneStamp(b.Completed)
	c.Cancelled = cloneStamp(b.Cancelled)
	return &c
}

// ModuleDraft is the assembly record of a module.
type ModuleDraft struct {
	BatchID         string   `json:"batchId"`
	SkuCode         string   `json:"skuCode"`
	AssemblyStation string   `json:"assemblyStation,omitempty"`
	CellsPerModule  int      `json:"cellsPerModule"`
	CellSerials     []string `json:"cellSerials"`
	ModuleSerial    string   `json:"moduleSerial,omitempty"`
}

// ModuleInstance is a FLOW-006 instance.
type ModuleInstance struct {
	Envelope
	State ModuleState `json:"state"`
	Draft ModuleDraft `json:"draft"`

	Serialized *Stamp `json:"serialized,omitempty"`
	Assembled  *Stamp `json:"assembled,omitempty"`
	QaAccepted *Stamp `json:"qaAccepted,omitempty"`
}

func (*ModuleInstance) Flow() FlowID        { return FlowModule }
func (m *ModuleInstance) StateName() string { return string(m.State) }
func (*ModuleInstance) sealed()             {}
func (m *ModuleInstance) Clone() Instance {
	c := *m
	c.Draft.CellSerials = cloneStrings(m.Draft.CellSerials)
	c.Serialized = cloneStamp(m.Serialized)
	c.Assembled = cloneStamp(m.Assembled)
	c.QaAccepted = cloneStamp(m.QaAccepted)
	return &c
}

var (
	_ Instance = (*SkuInstance)(nil)
	_ Instance = (*PurchaseOrderInstance)(nil)
	_ Instance = (*ReceiptInstance)(nil)
	_ Instance = (*BatchInstance)(nil)
	_ Instance = (*ModuleInstance)(nil)
)
