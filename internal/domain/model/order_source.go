package model

type OrderSourceKind string

const (
	OrderSourceSingle OrderSourceKind = "SINGLE"
	OrderSourceCart   OrderSourceKind = "CART"
)

// 注文明細の要求（商品と数量だけ。価格はサーバ側で決める）
type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// 注文の元。SingleItemかCartItemsのどちらか。
type OrderSource interface {
	Kind() OrderSourceKind
	Lines() []LineRequest
	isOrderSource()
}

// 商品1つを直接購入
type SingleItem struct {
	ProductID int64
	Quantity  int64
}

func (s SingleItem) Kind() OrderSourceKind { return OrderSourceSingle }
func (s SingleItem) Lines() []LineRequest {
	return []LineRequest{{ProductID: s.ProductID, Quantity: s.Quantity}}
}
func (SingleItem) isOrderSource() {}

// カートの中身から注文。確定時にカートは空になる。
type CartItems struct {
	Items []LineRequest
}

func (c CartItems) Kind() OrderSourceKind { return OrderSourceCart }
func (c CartItems) Lines() []LineRequest {
	out := make([]LineRequest, len(c.Items))
	copy(out, c.Items)
	return out
}
func (CartItems) isOrderSource() {}
