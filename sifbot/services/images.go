// services/images.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hahanour/sifbot/sifbot/database/models"
)

// ImageVariant names one of the four artworks a card carries.
type ImageVariant string

const (
	ImageVariantNormal        ImageVariant = "normal"
	ImageVariantIdolized      ImageVariant = "idolized"
	ImageVariantRound         ImageVariant = "round"
	ImageVariantRoundIdolized ImageVariant = "round_idolized"
)

var allVariants = []ImageVariant{
	ImageVariantNormal,
	ImageVariantIdolized,
	ImageVariantRound,
	ImageVariantRoundIdolized,
}

// ImageVerifyResult reports which card artworks exist in object storage.
type ImageVerifyResult struct {
	CardID  int
	Missing []ImageVariant
}

type SpacesService struct {
	client   *s3.Client
	bucket   string
	region   string
	CardRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, cardRoot string) *SpacesService {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		panic(fmt.Sprintf("Unable to load Spaces config: %v", err))
	}

	client := s3.NewFromConfig(cfg)

	return &SpacesService{
		client:   client,
		bucket:   bucket,
		region:   region,
		CardRoot: strings.TrimPrefix(cardRoot, "/"),
	}
}

// ImageKey returns the object key for one variant of a card's artwork.
func (s *SpacesService) ImageKey(cardID int, variant ImageVariant) string {
	switch variant {
	case ImageVariantIdolized:
		return fmt.Sprintf("%s/%d_idolized.png", s.CardRoot, cardID)
	case ImageVariantRound:
		return fmt.Sprintf("%s/round/%d.png", s.CardRoot, cardID)
	case ImageVariantRoundIdolized:
		return fmt.Sprintf("%s/round/%d_idolized.png", s.CardRoot, cardID)
	default:
		return fmt.Sprintf("%s/%d.png", s.CardRoot, cardID)
	}
}

// ImageURL returns the public URL for one variant of a card's artwork.
func (s *SpacesService) ImageURL(cardID int, variant ImageVariant) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s",
		s.bucket, s.region, s.ImageKey(cardID, variant))
}

// FillImageURLs populates every artwork URL field on the card from its ID.
func (s *SpacesService) FillImageURLs(card *models.Card) {
	card.CardImage = s.ImageURL(card.ID, ImageVariantNormal)
	card.CardIdolizedImage = s.ImageURL(card.ID, ImageVariantIdolized)
	card.RoundCardImage = s.ImageURL(card.ID, ImageVariantRound)
	card.RoundCardIdolizedImage = s.ImageURL(card.ID, ImageVariantRoundIdolized)
}

// VerifyCardImages checks which of the card's artworks exist in the bucket.
func (s *SpacesService) VerifyCardImages(ctx context.Context, cardID int) (*ImageVerifyResult, error) {
	result := &ImageVerifyResult{CardID: cardID}
	for _, variant := range allVariants {
		key := s.ImageKey(cardID, variant)
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			result.Missing = append(result.Missing, variant)
		}
	}
	return result, nil
}

// UploadCardImage stores one artwork variant for a card.
func (s *SpacesService) UploadCardImage(ctx context.Context, cardID int, variant ImageVariant, imageData []byte) (string, error) {
	key := s.ImageKey(cardID, variant)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(imageData),
		ContentType:  aws.String("image/png"),
		CacheControl: aws.String("public, max-age=31536000"),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s image for card %d: %w", variant, cardID, err)
	}
	return s.ImageURL(cardID, variant), nil
}

// DeleteCardImages removes every artwork variant for a card.
func (s *SpacesService) DeleteCardImages(ctx context.Context, cardID int) error {
	var errors []string
	for _, variant := range allVariants {
		key := s.ImageKey(cardID, variant)
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			errors = append(errors, fmt.Sprintf("%s (%s): %v", variant, key, err))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("failed to delete card %d images: %s", cardID, strings.Join(errors, "; "))
	}
	return nil
}
