package listorders

import (
	"context"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/corray333/frameshop/order/internal/service/errs"
	"github.com/corray333/frameshop/order/internal/service/models/order"
	"github.com/corray333/frameshop/order/internal/transport/http/response"
)

// service is an interface for the service layer.
type service interface {
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) (*order.Page, error)
}

type listOrdersRequest struct {
	Status string `schema:"status"`
	Search string `schema:"search"`
	Page   int    `schema:"page"`
	Limit  int    `schema:"limit"`
}

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}

// ListOrders handles the back-office order list with status, search and paging.
func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	var req listOrdersRequest
	if err := decoder.Decode(&req, r.URL.Query()); err != nil {
		response.Error(w, r, errs.Wrap(errs.KindValidation, err, "invalid query parameters"))
		return
	}

	filter := order.QueryOrdersModel{
		Search: req.Search,
		Page:   req.Page,
		Limit:  req.Limit,
	}
	if req.Status != "" {
		status, err := order.ParseStatus(req.Status)
		if err != nil {
			response.Error(w, r, errs.Wrap(errs.KindValidation, err, "unknown status filter"))
			return
		}
		filter.Status = &status
	}

	page, err := service.ListOrders(r.Context(), filter)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, page)
}
