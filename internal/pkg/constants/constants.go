package constants

// 服务名，同时用作 nacos 注册名与 tracer 名
const (
	UserService    = "user-service"
	ProductService = "product-service"
	OrderService   = "order-service"
)

// 服务间调用的路径
const (
	UserLookupPath     = "/api/user/%d/"
	UserVerifyPath     = "/api/verify/"
	ProductLookupPath  = "/api/product/%d/"
	ProductCheckStock  = "/api/check-stock/"
	ProductUpdateStock = "/api/update-stock/"
)

// 订单事件类型
const (
	EventOrderPlaced            = "order.placed"
	EventOrderCancelled         = "order.cancelled"
	EventOrderStatusChanged     = "order.status_changed"
	EventOrderStockInconsistent = "order.stock_inconsistent"
)
