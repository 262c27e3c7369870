package domain

// ConsumptionRecord 单个账户的年度逐月用电记录（对应 consumption_records 表）
// accountId 为主键；同一 accountId 的 upsert 整体替换旧记录
type ConsumptionRecord struct {
	AccountID      int64              `json:"accountId"`
	IsCommercial   *bool              `json:"isCommercial"`   // nil = 尚未分类
	Address        *string            `json:"address"`        // nullable
	BuildingType   *string            `json:"buildingType"`   // nullable
	RoomsCount     *int               `json:"roomsCount"`     // nullable
	ResidentsCount *int               `json:"residentsCount"` // nullable
	TotalArea      *float64           `json:"totalArea"`      // nullable
	Consumption    MonthlyConsumption `json:"consumption"`
}

// Classification 回填分类结果；只写入仍未分类且地址未变的记录
type Classification struct {
	AccountID    int64
	Address      string
	IsCommercial bool
}

// Commercial 是否商业用户（未分类视为非商业）
func (r ConsumptionRecord) Commercial() bool {
	return r.IsCommercial != nil && *r.IsCommercial
}

// Classified 是否已有分类结果
func (r ConsumptionRecord) Classified() bool {
	return r.IsCommercial != nil
}

// AddressValue 地址（nil 返回空串）
func (r ConsumptionRecord) AddressValue() string {
	if r.Address == nil {
		return ""
	}
	return *r.Address
}

// NeedsClassification 未分类且地址非空
func (r ConsumptionRecord) NeedsClassification() bool {
	return r.IsCommercial == nil && r.AddressValue() != ""
}

// AnnualTotal 全年用电合计
func (r ConsumptionRecord) AnnualTotal() float64 {
	return r.Consumption.Total()
}

// NormKey 返回标准匹配键；rooms 或 residents 为空时 ok=false
func (r ConsumptionRecord) NormKey() (NormKey, bool) {
	if r.RoomsCount == nil || r.ResidentsCount == nil {
		return NormKey{}, false
	}
	return NormKey{Rooms: *r.RoomsCount, Residents: *r.ResidentsCount}, true
}

// NormKey 标准表复合键（房间数 + 居住人数）
type NormKey struct {
	Rooms     int
	Residents int
}

// NormBucket 用电标准（对应 norm_buckets 表）
type NormBucket struct {
	RoomsCount     int                `json:"rooms"`
	ResidentsCount int                `json:"residents"`
	Consumption    MonthlyConsumption `json:"consumption"`
}

// Key 标准表键
func (n NormBucket) Key() NormKey {
	return NormKey{Rooms: n.RoomsCount, Residents: n.ResidentsCount}
}

// AnnualTotal 标准全年合计
func (n NormBucket) AnnualTotal() float64 {
	return n.Consumption.Total()
}

// DeviationRecord 偏差分析结果（按需计算，不落库）
type DeviationRecord struct {
	Record           ConsumptionRecord `json:"account"`
	Norm             *NormBucket       `json:"norm,omitempty"`
	AnnualTotal      float64           `json:"total"`
	AnnualNormTotal  float64           `json:"normTotal"`
	DeviationPercent int               `json:"deviation"`
}

// HighConsumer 冬季高耗电用户
type HighConsumer struct {
	Record             ConsumptionRecord `json:"account"`
	Winter             WinterConsumption `json:"winter"`
	AverageConsumption float64           `json:"avgConsumption"`
}

// MonthComparison 单月实际与标准对比
type MonthComparison struct {
	Month  int     `json:"month"`
	Actual float64 `json:"actual"`
	Norm   float64 `json:"norm"`
	Diff   float64 `json:"diff"`
}

// AccountComparison 单账户逐月对比
type AccountComparison struct {
	Record           ConsumptionRecord `json:"account"`
	Norm             *NormBucket       `json:"norm,omitempty"`
	Months           []MonthComparison `json:"months"`
	AnnualTotal      float64           `json:"total"`
	AnnualNormTotal  float64           `json:"normTotal"`
	DeviationPercent int               `json:"deviation"`
}
