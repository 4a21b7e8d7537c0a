package handler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/libaas-store/storefront/internal/middleware"
	"github.com/libaas-store/storefront/internal/telemetry"
	"github.com/rs/zerolog"
)

const imageFormField = "image"

// ImageHandler exposes the image storage operations over HTTP
type ImageHandler struct {
	storage     domain.ImageStorage
	validate    *validator.Validate
	maxUploadMB int64
	log         zerolog.Logger
}

// NewImageHandler creates a new image handler
func NewImageHandler(storage domain.ImageStorage, maxUploadMB int64, log zerolog.Logger) *ImageHandler {
	return &ImageHandler{
		storage:     storage,
		validate:    validator.New(),
		maxUploadMB: maxUploadMB,
		log:         log.With().Str("component", "image-handler").Logger(),
	}
}

type productImageParams struct {
	ProductID int64 `validate:"required,gt=0"`
}

type categoryImageParams struct {
	Slug string `validate:"required,max=100"`
}

type paymentProofParams struct {
	OrderID string `validate:"required,max=64"`
}

// UploadProductImage handles POST /api/admin/products/:productId/images
func (h *ImageHandler) UploadProductImage(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("productId"), 10, 64)
	params := productImageParams{ProductID: id}
	if err != nil || h.validate.Struct(params) != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid product id",
		})
	}

	return h.handleUpload(c, domain.BucketProducts, func(file domain.FileUpload) (string, error) {
		return h.storage.UploadProductImage(c.UserContext(), file, params.ProductID)
	})
}

// UploadCategoryImage handles POST /api/admin/categories/:slug/images
func (h *ImageHandler) UploadCategoryImage(c *fiber.Ctx) error {
	params := categoryImageParams{Slug: c.Params("slug")}
	if err := h.validate.Struct(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid category slug",
		})
	}

	return h.handleUpload(c, domain.BucketCategories, func(file domain.FileUpload) (string, error) {
		return h.storage.UploadCategoryImage(c.UserContext(), file, params.Slug)
	})
}

// UploadPaymentProof handles POST /api/orders/:orderId/payment-proof for signed-in customers
func (h *ImageHandler) UploadPaymentProof(c *fiber.Ctx) error {
	params := paymentProofParams{OrderID: c.Params("orderId")}
	if err := h.validate.Struct(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "invalid order id",
		})
	}

	return h.handleUpload(c, domain.BucketPaymentProofs, func(file domain.FileUpload) (string, error) {
		return h.storage.UploadPaymentProof(c.UserContext(), file, params.OrderID)
	})
}

// UploadAvatar handles POST /api/me/avatar
func (h *ImageHandler) UploadAvatar(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "user not authenticated",
		})
	}

	return h.handleUpload(c, domain.BucketUserAvatars, func(file domain.FileUpload) (string, error) {
		return h.storage.UploadUserAvatar(c.UserContext(), file, userID)
	})
}

// ListImages handles GET /api/admin/images/:bucket?folder=
func (h *ImageHandler) ListImages(c *fiber.Ctx) error {
	files, err := h.storage.ListImages(c.UserContext(), c.Params("bucket"), c.Query("folder"))
	if err != nil {
		return h.storageError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    files,
	})
}

// DeleteImage handles DELETE /api/admin/images/:bucket/*
func (h *ImageHandler) DeleteImage(c *fiber.Ctx) error {
	filePath, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid file path",
		})
	}

	bucket := c.Params("bucket")
	if err := h.storage.DeleteImage(c.UserContext(), bucket, filePath); err != nil {
		return h.storageError(c, err)
	}

	h.log.Info().Str("bucket", bucket).Str("path", filePath).Str("by", middleware.GetUserID(c)).Msg("image deleted")
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Image deleted",
	})
}

// ImageURL handles GET /api/images/:bucket/url?path=
func (h *ImageHandler) ImageURL(c *fiber.Ctx) error {
	filePath := c.Query("path")
	if filePath == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid file path",
		})
	}

	u, ok := h.storage.ImageURL(c.Params("bucket"), filePath)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid bucket",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"url": u},
	})
}

// CreatePaymentProofsBucket handles POST /api/admin/storage/payment-proofs-bucket
func (h *ImageHandler) CreatePaymentProofsBucket(c *fiber.Ctx) error {
	if err := h.storage.CreatePaymentProofsBucket(c.UserContext()); err != nil {
		return h.storageError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment proofs bucket is ready",
	})
}

// handleUpload reads the multipart image field and passes it to upload
func (h *ImageHandler) handleUpload(c *fiber.Ctx, kind domain.BucketKind, upload func(domain.FileUpload) (string, error)) error {
	telemetry.SetSpanAttribute(c, "storage.bucket_kind", string(kind))

	fileHeader, err := c.FormFile(imageFormField)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "missing 'image' field in form data",
		})
	}

	// The request body limit sits above the image limit; reject oversize parts before opening them
	if maxBytes := h.maxUploadMB * 1024 * 1024; maxBytes > 0 && fileHeader.Size > maxBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("file size exceeds maximum of %dMB", h.maxUploadMB),
		})
	}

	fh, err := fileHeader.Open()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to open uploaded file")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to open uploaded file",
		})
	}
	defer fh.Close()

	u, err := upload(domain.FileUpload{
		Name:        fileHeader.Filename,
		ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
		Size:        fileHeader.Size,
		Content:     fh,
		UploadedBy:  middleware.GetUserID(c),
	})
	if err != nil {
		return h.storageError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"url": u},
	})
}

// storageError maps storage failures to responses; ValidationError text is the only detail ever shown
func (h *ImageHandler) storageError(c *fiber.Ctx, err error) error {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   vErr.Message,
		})
	}

	status := fiber.StatusInternalServerError
	message := "An unexpected error occurred"
	switch {
	case errors.Is(err, domain.ErrObjectExists):
		status, message = fiber.StatusConflict, "A file already exists at this path"
	case errors.Is(err, domain.ErrPrivilegedRequired):
		status, message = fiber.StatusServiceUnavailable, "Storage is not configured for this operation"
	case errors.Is(err, domain.ErrUploadFailed):
		message = "Upload failed"
	case errors.Is(err, domain.ErrDeleteFailed):
		message = "Deletion failed"
	case errors.Is(err, domain.ErrListFailed):
		message = "Listing failed"
	case errors.Is(err, domain.ErrProvisionFailed):
		message = "Failed to create bucket"
	default:
		h.log.Error().Err(err).Msg("unexpected storage error")
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
