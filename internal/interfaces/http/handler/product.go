package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"github.com/mystique/backend/internal/application/catalog"
	"github.com/mystique/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
)

// maxImageSlots is the number of image form fields a product accepts (image1..image4)
const maxImageSlots = 4

// multipartMemory bounds the part of a multipart form kept in memory; the rest spills to disk
const multipartMemory = 8 << 20

// CatalogService is the part of catalog.ProductService the product endpoints call
type CatalogService interface {
	Create(ctx context.Context, req catalog.CreateProductRequest, images []catalog.ImageFile) (*catalog.ProductResponse, error)
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.ProductResponse, error)
	List(ctx context.Context, filter catalog.ProductListFilter) ([]catalog.ProductResponse, int64, error)
	Update(ctx context.Context, id uuid.UUID, req catalog.UpdateProductRequest, images []catalog.ImageFile) (*catalog.ProductResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductHandler handles product-related HTTP requests
type ProductHandler struct {
	BaseHandler
	productService CatalogService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService CatalogService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// RemoveProductRequest is the body of the remove endpoint
type RemoveProductRequest struct {
	ID string `json:"id" binding:"required,uuid"`
}

// Create godoc
// @Summary      Add a product
// @Description  Create a product from multipart form fields and one to four images
// @Tags         product
// @Accept       multipart/form-data
// @Produce      json
// @Param        name formData string true "Product name"
// @Param        description formData string true "Description"
// @Param        price formData number true "Unit price"
// @Param        category formData string true "Clothing, Accessories or Footwear"
// @Param        subCategory formData string true "Dresses, Tops, Bottoms, Outerwear, Jewelry or Bags"
// @Param        sizes formData string true "JSON array of sizes, e.g. [\"S\",\"M\"]"
// @Param        stock formData int false "Units on hand"
// @Param        bestseller formData bool false "Bestseller flag"
// @Param        newArrival formData bool false "New arrival flag"
// @Param        limitedEdition formData bool false "Limited edition flag"
// @Param        image1 formData file true "First image"
// @Param        image2 formData file false "Second image"
// @Param        image3 formData file false "Third image"
// @Param        image4 formData file false "Fourth image"
// @Success      201 {object} dto.Response{data=catalog.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /product/add [post]
func (h *ProductHandler) Create(c *gin.Context) {
	form, err := h.multipartForm(c)
	if err != nil {
		h.BindError(c, err)
		return
	}

	req, err := createRequestFromForm(form)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		h.BindError(c, err)
		return
	}

	product, err := h.productService.Create(c.Request.Context(), req, imagesFromForm(form))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// Remove godoc
// @Summary      Remove a product
// @Tags         product
// @Accept       json
// @Produce      json
// @Param        request body RemoveProductRequest true "Product to remove"
// @Success      200 {object} SuccessResponse
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /product/remove [post]
func (h *ProductHandler) Remove(c *gin.Context) {
	var req RemoveProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	if err := h.productService.Delete(c.Request.Context(), uuid.MustParse(req.ID)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"message": "Product removed"})
}

// GetByID godoc
// @Summary      Get a product
// @Tags         product
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} dto.Response{data=catalog.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /product/get/{id} [get]
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// List godoc
// @Summary      List products
// @Description  Storefront catalog with filters and pagination
// @Tags         product
// @Produce      json
// @Param        search query string false "Name contains"
// @Param        category query string false "Category"
// @Param        subCategory query string false "Subcategory"
// @Param        bestseller query bool false "Only bestsellers"
// @Param        newArrival query bool false "Only new arrivals"
// @Param        limitedEdition query bool false "Only limited editions"
// @Param        inStock query bool false "Only products with stock"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size"
// @Param        order_by query string false "name, price, stock or created_at"
// @Param        order_dir query string false "asc or desc"
// @Success      200 {object} dto.Response{data=[]catalog.ProductResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /product/list [get]
func (h *ProductHandler) List(c *gin.Context) {
	var filter catalog.ProductListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	products, total, err := h.productService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, products, total, filter.Page, filter.PageSize)
}

// Update godoc
// @Summary      Update a product
// @Description  Partial update from JSON, or multipart with replacement images
// @Tags         product
// @Accept       json,multipart/form-data
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Param        request body catalog.UpdateProductRequest false "Fields to change"
// @Success      200 {object} dto.Response{data=catalog.ProductResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     TokenAuth
// @Router       /product/update/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var (
		req    catalog.UpdateProductRequest
		images []catalog.ImageFile
	)
	if strings.HasPrefix(c.ContentType(), binding.MIMEMultipartPOSTForm) {
		form, err := h.multipartForm(c)
		if err != nil {
			h.BindError(c, err)
			return
		}
		if req, err = updateRequestFromForm(form); err != nil {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
			return
		}
		if err := binding.Validator.ValidateStruct(&req); err != nil {
			h.BindError(c, err)
			return
		}
		images = imagesFromForm(form)
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	product, err := h.productService.Update(c.Request.Context(), id, req, images)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

func (h *ProductHandler) multipartForm(c *gin.Context) (*multipart.Form, error) {
	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}
	return c.Request.MultipartForm, nil
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values, ok := form.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimSpace(values[0]), true
}

// parseSizes accepts the admin panel's JSON-encoded array, repeated fields or a comma list
func parseSizes(form *multipart.Form) ([]string, bool, error) {
	values, ok := form.Value["sizes"]
	if !ok || len(values) == 0 {
		return nil, false, nil
	}
	if len(values) == 1 {
		raw := strings.TrimSpace(values[0])
		if strings.HasPrefix(raw, "[") {
			var sizes []string
			if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
				return nil, true, errors.New("sizes must be a JSON array of strings")
			}
			return sizes, true, nil
		}
		values = strings.Split(raw, ",")
	}
	sizes := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			sizes = append(sizes, v)
		}
	}
	return sizes, true, nil
}

type productFields struct {
	name, description, category, subcategory *string
	price                                     *decimal.Decimal
	sizes                                     []string
	stock                                     *int
	bestseller, newArrival, limitedEdition    *bool
}

func parseProductForm(form *multipart.Form) (productFields, error) {
	var f productFields
	str := func(key string) *string {
		if v, ok := formValue(form, key); ok && v != "" {
			return &v
		}
		return nil
	}
	flag := func(key string) (*bool, error) {
		v, ok := formValue(form, key)
		if !ok || v == "" {
			return nil, nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errors.New(key + " must be true or false")
		}
		return &b, nil
	}

	f.name = str("name")
	f.description = str("description")
	f.category = str("category")
	f.subcategory = str("subCategory")

	if v, ok := formValue(form, "price"); ok && v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil {
			return f, errors.New("price must be a number")
		}
		f.price = &price
	}
	if v, ok := formValue(form, "stock"); ok && v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("stock must be an integer")
		}
		f.stock = &stock
	}

	sizes, _, err := parseSizes(form)
	if err != nil {
		return f, err
	}
	f.sizes = sizes

	if f.bestseller, err = flag("bestseller"); err != nil {
		return f, err
	}
	if f.newArrival, err = flag("newArrival"); err != nil {
		return f, err
	}
	if f.limitedEdition, err = flag("limitedEdition"); err != nil {
		return f, err
	}
	return f, nil
}

func createRequestFromForm(form *multipart.Form) (catalog.CreateProductRequest, error) {
	f, err := parseProductForm(form)
	if err != nil {
		return catalog.CreateProductRequest{}, err
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	isSet := func(b *bool) bool { return b != nil && *b }

	req := catalog.CreateProductRequest{
		Name:           deref(f.name),
		Description:    deref(f.description),
		Category:       deref(f.category),
		Subcategory:    deref(f.subcategory),
		Sizes:          f.sizes,
		Bestseller:     isSet(f.bestseller),
		NewArrival:     isSet(f.newArrival),
		LimitedEdition: isSet(f.limitedEdition),
	}
	if f.price != nil {
		req.Price = *f.price
	}
	if f.stock != nil {
		req.Stock = *f.stock
	}
	return req, nil
}

func updateRequestFromForm(form *multipart.Form) (catalog.UpdateProductRequest, error) {
	f, err := parseProductForm(form)
	if err != nil {
		return catalog.UpdateProductRequest{}, err
	}
	return catalog.UpdateProductRequest{
		Name:           f.name,
		Description:    f.description,
		Price:          f.price,
		Category:       f.category,
		Subcategory:    f.subcategory,
		Sizes:          f.sizes,
		Stock:          f.stock,
		Bestseller:     f.bestseller,
		NewArrival:     f.newArrival,
		LimitedEdition: f.limitedEdition,
	}, nil
}

// imagesFromForm collects image1..image4 in slot order, skipping empty slots
func imagesFromForm(form *multipart.Form) []catalog.ImageFile {
	var images []catalog.ImageFile
	for slot := 1; slot <= maxImageSlots; slot++ {
		headers := form.File["image"+strconv.Itoa(slot)]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		images = append(images, catalog.ImageFile{
			Slot:        slot,
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return images
}
