package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/MikeMC777/ecom-points/internal/apperr"
	"github.com/MikeMC777/ecom-points/internal/httpx"
	"github.com/MikeMC777/ecom-points/internal/order"
	"github.com/MikeMC777/ecom-points/internal/product"
	"github.com/MikeMC777/ecom-points/internal/user"
)

type pageParams struct {
	Page  int `form:"page"  binding:"omitempty,min=1,max=10000"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, httpx.ErrorBody{Error: "forbidden"})
}

// ---------- products ----------

func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q product.Query
		if !httpx.BindQuery(c, &q) {
			return
		}
		if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
			httpx.WriteError(c, apperr.Validation("maxPrice", "must be greater than or equal to minPrice"))
			return
		}
		q = q.Normalize()
		items, total, err := repo.List(c.Request.Context(), q)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if items == nil {
			items = []product.Product{}
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q.Q, Page: q.Page, Limit: q.Limit, Total: total, Items: items})
	}
}

func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		p, err := repo.GetByID(c.Request.Context(), id)
		if errors.Is(err, product.ErrNotFound) {
			err = apperr.NotFound("product %d not found", id)
		}
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func createProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.CreateProductRequest
		if !httpx.BindJSON(c, &req) {
			return
		}
		p, err := req.ToProduct()
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			httpx.WriteError(c, err)
			return
		}
		log.WithField("product_id", p.ID).Info("product created")
		c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		var req product.UpdateProductRequest
		if !httpx.BindJSON(c, &req) {
			return
		}
		patch, err := req.ToPatch()
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if patch.Empty() {
			httpx.WriteError(c, apperr.Validation("body", "no fields to update"))
			return
		}
		p, err := repo.Update(c.Request.Context(), id, patch)
		if errors.Is(err, product.ErrNotFound) {
			err = apperr.NotFound("product %d not found", id)
		}
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func deleteProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		deleted, err := repo.SoftDelete(c.Request.Context(), id)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if !deleted {
			httpx.WriteError(c, apperr.NotFound("product %d not found", id))
			return
		}
		log.WithField("product_id", id).Info("product deleted")
		c.Status(http.StatusNoContent)
	}
}

// ---------- orders ----------

func createOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		var req order.PlaceOrderRequest
		if !httpx.BindJSON(c, &req) {
			return
		}
		view, err := svc.PlaceOrder(c.Request.Context(), me.UserID, req.Items)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": view})
	}
}

func getOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		view, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		if view.UserID != me.UserID && !me.IsAdmin() {
			forbidden(c)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": view})
	}
}

func listOrdersHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		var p pageParams
		if !httpx.BindQuery(c, &p) {
			return
		}
		res, err := svc.ListByUser(c.Request.Context(), me.UserID, p.Page, p.Limit)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// ---------- users ----------

func registerHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req user.RegisterRequest
		if !httpx.BindJSON(c, &req) {
			return
		}
		u, err := svc.Register(c.Request.Context(), req)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": u})
	}
}

func meHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		u, err := svc.Get(c.Request.Context(), me.UserID)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u})
	}
}

func getUserHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		if id != me.UserID && !me.IsAdmin() {
			forbidden(c)
			return
		}
		u, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u})
	}
}

func updateUserHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		if id != me.UserID && !me.IsAdmin() {
			forbidden(c)
			return
		}
		var req user.UpdateRequest
		if !httpx.BindJSON(c, &req) {
			return
		}
		u, err := svc.Update(c.Request.Context(), id, req, me.IsAdmin())
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u})
	}
}

func deleteUserHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := httpx.PathID(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// ---------- points ----------

func balanceHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		bal, err := svc.Balance(c.Request.Context(), me.UserID)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, bal)
	}
}

func transferHandler(svc *user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		me, _ := httpx.IdentityFrom(c)
		var req user.TransferRequest
		if !httpx.BindJSON(c, &req) {
			return
		}
		res, err := svc.TransferPoint(c.Request.Context(), me.UserID, req.ReceiverID, req.Amount)
		if err != nil {
			httpx.WriteError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
