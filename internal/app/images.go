package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/domain"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// ImageService uploads image bytes to the object store and appends the
// returned URI to the owning hotel or room.
type ImageService struct {
	store   domain.Store
	objects domain.ImageStore
	catalog *CatalogService
}

func NewImageService(s domain.Store, objects domain.ImageStore, catalog *CatalogService) *ImageService {
	return &ImageService{store: s, objects: objects, catalog: catalog}
}

type ImageUpload struct {
	Filename string
	Body     io.Reader
}

// ImageKey builds a unique object key under prefix keeping the file extension.
func ImageKey(prefix, filename string) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	if !imageExtensions[ext] {
		return "", domain.Invalid("only .jpg, .jpeg, .png, .gif and .webp images are allowed")
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext), nil
}

func (s *ImageService) AddHotelImage(ctx context.Context, hotelID int64, up ImageUpload) (string, error) {
	if _, err := s.store.Catalog().GetHotel(ctx, hotelID); err != nil {
		return "", err
	}
	key, err := ImageKey(fmt.Sprintf("hotels/%d", hotelID), up.Filename)
	if err != nil {
		return "", err
	}
	uri, err := s.put(ctx, key, up.Body)
	if err != nil {
		return "", err
	}
	err = s.catalog.inHotel(ctx, hotelID, func(uow domain.UnitOfWork, h domain.Hotel) error {
		h.Images = append(append([]string{}, h.Images...), uri)
		return uow.Catalog().UpdateHotel(ctx, h)
	})
	if err != nil {
		s.discard(ctx, key)
		return "", err
	}
	s.catalog.invalidate(ctx, hotelID)
	log.Info().Int64("hotel_id", hotelID).Str("uri", uri).Msg("hotel image added")
	return uri, nil
}

func (s *ImageService) AddRoomImage(ctx context.Context, roomID int64, up ImageUpload) (string, error) {
	room, err := s.store.Catalog().GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	key, err := ImageKey(fmt.Sprintf("rooms/%d", roomID), up.Filename)
	if err != nil {
		return "", err
	}
	uri, err := s.put(ctx, key, up.Body)
	if err != nil {
		return "", err
	}
	err = s.catalog.inHotel(ctx, room.HotelID, func(uow domain.UnitOfWork, _ domain.Hotel) error {
		cur, err := uow.Catalog().GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		cur.Images = append(append([]string{}, cur.Images...), uri)
		return uow.Catalog().UpdateRoom(ctx, cur)
	})
	if err != nil {
		s.discard(ctx, key)
		return "", err
	}
	s.catalog.invalidate(ctx, room.HotelID)
	log.Info().Int64("room_id", roomID).Str("uri", uri).Msg("room image added")
	return uri, nil
}

// put sniffs the content type from the first bytes and streams the rest.
func (s *ImageService) put(ctx context.Context, key string, body io.Reader) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", domain.Invalid("could not read uploaded file")
	}
	if n == 0 {
		return "", domain.Invalid("uploaded file is empty")
	}
	head = head[:n]
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") {
		return "", domain.Invalid("uploaded file is not an image")
	}
	uri, err := s.objects.Put(ctx, key, ct, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrObjectStore, err)
	}
	return uri, nil
}

func (s *ImageService) discard(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("orphaned image object")
	}
}
