package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	maxNameLen    = 200
	maxPhoneLen   = 50
	maxAddressLen = 500
	maxCouponLen  = 64
)

type createOrderRequest struct {
	CustomerName    string                   `json:"customer_name" validate:"required"`
	CustomerEmail   string                   `json:"customer_email" validate:"required,email"`
	CustomerPhone   *string                  `json:"customer_phone,omitempty"`
	ShippingAddress *string                  `json:"shipping_address,omitempty"`
	DeliveryMethod  string                   `json:"delivery_method" validate:"required"`
	CouponCode      *string                  `json:"coupon_code,omitempty"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

type createOrderItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

func (r createOrderRequest) toInput() (internalorders.CreateOrderInput, error) {
	method, err := enums.ParseDeliveryMethod(r.DeliveryMethod)
	if err != nil {
		return internalorders.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method").
			WithDetails(map[string]any{"delivery_method": r.DeliveryMethod})
	}

	input := internalorders.CreateOrderInput{
		CustomerName:    validators.CleanText(r.CustomerName, maxNameLen),
		CustomerEmail:   validators.CleanText(r.CustomerEmail, maxNameLen),
		CustomerPhone:   validators.CleanOptionalText(r.CustomerPhone, maxPhoneLen),
		ShippingAddress: validators.CleanOptionalText(r.ShippingAddress, maxAddressLen),
		DeliveryMethod:  method,
		CouponCode:      validators.CleanOptionalText(r.CouponCode, maxCouponLen),
		Items:           make([]internalorders.CreateOrderItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		input.Items = append(input.Items, internalorders.CreateOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return input, nil
}

// Create places an order from the shopper's cart. Stock is checked but not deducted
// until the payment is confirmed.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// PaymentPreference opens a hosted checkout session for a pending order.
func PaymentPreference(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pref, err := svc.CreatePaymentPreference(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, pref)
	}
}
