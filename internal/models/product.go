// Package models defines the product record, stored documents, pipeline outcomes,
// and search types shared across packages.
package models

import "encoding/json"

// SchemaVersion is the version of the product record shape.
const SchemaVersion = "1.0"

// TopLevelKeys lists the sections every serialized ProductRecord carries.
var TopLevelKeys = []string{
	"product_details",
	"product_content",
	"technical_details",
	"classification_tags",
	"additional_information",
	"purchase_information",
	"reviews_and_ratings",
	"metadata",
}

// ProductRecord is the structured record extracted from one product page.
// Unset scalars serialize as null and unset lists as [] (see Normalize).
type ProductRecord struct {
	ProductDetails        ProductDetails        `json:"product_details"`
	ProductContent        ProductContent        `json:"product_content"`
	TechnicalDetails      TechnicalDetails      `json:"technical_details"`
	ClassificationTags    ClassificationTags    `json:"classification_tags"`
	AdditionalInformation AdditionalInformation `json:"additional_information"`
	PurchaseInformation   PurchaseInformation   `json:"purchase_information"`
	ReviewsAndRatings     ReviewsAndRatings     `json:"reviews_and_ratings"`
	Metadata              RecordMetadata        `json:"metadata"`
}

type ProductDetails struct {
	Title            Text             `json:"title"`
	Brand            Text             `json:"brand"`
	SKU              Text             `json:"sku"`
	MainImage        Text             `json:"main_image"`
	SecondaryImages  []Text           `json:"secondary_images"`
	PriceInformation PriceInformation `json:"price_information"`
	Availability     Availability     `json:"availability"`
}

type PriceInformation struct {
	CurrentPrice       Text        `json:"current_price"`
	OriginalPrice      Text        `json:"original_price"`
	Currency           Text        `json:"currency"`
	DiscountPercentage Text        `json:"discount_percentage"`
	PricePerUnit       Text        `json:"price_per_unit"`
	BulkPricing        []PriceTier `json:"bulk_pricing"`
}

type PriceTier struct {
	Quantity Text `json:"quantity"`
	Price    Text `json:"price"`
}

type Availability struct {
	Status            Text `json:"status"`
	QuantityAvailable Text `json:"quantity_available"`
	DeliveryEstimate  Text `json:"delivery_estimate"`
}

type ProductContent struct {
	ShortDescription  Text        `json:"short_description"`
	FullDescription   Text        `json:"full_description"`
	KeyFeatures       []Text      `json:"key_features"`
	BulletPoints      []Text      `json:"bullet_points"`
	UsageInstructions []Text      `json:"usage_instructions"`
	Highlights        []Highlight `json:"highlights"`
}

type Highlight struct {
	Title       Text `json:"title"`
	Description Text `json:"description"`
}

type TechnicalDetails struct {
	Dimensions     Dimensions  `json:"dimensions"`
	Specifications []SpecGroup `json:"specifications"`
	Materials      []Text      `json:"materials"`
	Certifications []Text      `json:"certifications"`
	Compatibility  []Text      `json:"compatibility"`
}

type Dimensions struct {
	Length            Text              `json:"length"`
	Width             Text              `json:"width"`
	Height            Text              `json:"height"`
	Weight            Text              `json:"weight"`
	PackageDimensions PackageDimensions `json:"package_dimensions"`
}

type PackageDimensions struct {
	Length Text `json:"length"`
	Width  Text `json:"width"`
	Height Text `json:"height"`
	Weight Text `json:"weight"`
}

type SpecGroup struct {
	Category   Text            `json:"category"`
	Attributes []SpecAttribute `json:"attributes"`
}

type SpecAttribute struct {
	Name  Text `json:"name"`
	Value Text `json:"value"`
	Unit  Text `json:"unit"`
}

type ClassificationTags struct {
	ProductTypeTags []Text `json:"product_type_tags"`
	StyleTags       []Text `json:"style_tags"`
	ColorTags       []Text `json:"color_tags"`
	MaterialTags    []Text `json:"material_tags"`
	OccasionTags    []Text `json:"occasion_tags"`
	SeasonTags      []Text `json:"season_tags"`
	FitTags         []Text `json:"fit_tags"`
	TrendTags       []Text `json:"trend_tags"`
	DemographicTags []Text `json:"demographic_tags"`
	PriceTierTags   []Text `json:"price_tier_tags"`
	AllTags         []Text `json:"all_tags"`
}

type AdditionalInformation struct {
	Categories      []Text           `json:"categories"`
	ModelNumber     Text             `json:"model_number"`
	Manufacturer    Manufacturer     `json:"manufacturer"`
	Warranty        Warranty         `json:"warranty"`
	PackageContents []Text           `json:"package_contents"`
	RelatedProducts []RelatedProduct `json:"related_products"`
}

type Manufacturer struct {
	Name            Text `json:"name"`
	CountryOfOrigin Text `json:"country_of_origin"`
	ContactInfo     Text `json:"contact_info"`
}

type Warranty struct {
	Duration Text   `json:"duration"`
	Type     Text   `json:"type"`
	Coverage []Text `json:"coverage"`
}

type RelatedProduct struct {
	Title            Text `json:"title"`
	URL              Text `json:"url"`
	RelationshipType Text `json:"relationship_type"`
}

type PurchaseInformation struct {
	Shipping       Shipping     `json:"shipping"`
	ReturnPolicy   ReturnPolicy `json:"return_policy"`
	PaymentMethods []Text       `json:"payment_methods"`
}

type Shipping struct {
	Methods               []ShippingMethod `json:"methods"`
	FreeShippingThreshold Text             `json:"free_shipping_threshold"`
	Restrictions          []Text           `json:"restrictions"`
}

type ShippingMethod struct {
	Name          Text `json:"name"`
	Cost          Text `json:"cost"`
	EstimatedDays Text `json:"estimated_days"`
}

type ReturnPolicy struct {
	Duration      Text   `json:"duration"`
	Conditions    []Text `json:"conditions"`
	RestockingFee Text   `json:"restocking_fee"`
}

type ReviewsAndRatings struct {
	AverageRating      Text               `json:"average_rating"`
	TotalReviews       Text               `json:"total_reviews"`
	RatingDistribution RatingDistribution `json:"rating_distribution"`
	FeaturedReviews    []Review           `json:"featured_reviews"`
}

type RatingDistribution struct {
	FiveStar  Text `json:"5_star"`
	FourStar  Text `json:"4_star"`
	ThreeStar Text `json:"3_star"`
	TwoStar   Text `json:"2_star"`
	OneStar   Text `json:"1_star"`
}

type Review struct {
	Rating           Text `json:"rating"`
	Title            Text `json:"title"`
	Content          Text `json:"content"`
	Author           Text `json:"author"`
	Date             Text `json:"date"`
	VerifiedPurchase Text `json:"verified_purchase"`
}

// RecordMetadata is stamped by the pipeline; SourceURL and ScrapeTimestamp are
// always overwritten on persistence.
type RecordMetadata struct {
	SourceURL       string `json:"source_url"`
	ScrapeTimestamp string `json:"scrape_timestamp"`
	LastUpdated     Text   `json:"last_updated"`
	SchemaVersion   string `json:"schema_version"`
	DocumentID      string `json:"document_id,omitempty"`
}

// UnmarshalJSON accepts scalars of any kind for the string fields, so a
// schema_version of 1.0 decodes as "1.0".
func (m *RecordMetadata) UnmarshalJSON(data []byte) error {
	var raw struct {
		SourceURL       Text `json:"source_url"`
		ScrapeTimestamp Text `json:"scrape_timestamp"`
		LastUpdated     Text `json:"last_updated"`
		SchemaVersion   Text `json:"schema_version"`
		DocumentID      Text `json:"document_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = RecordMetadata{
		SourceURL:       raw.SourceURL.String(),
		ScrapeTimestamp: raw.ScrapeTimestamp.String(),
		LastUpdated:     raw.LastUpdated,
		SchemaVersion:   raw.SchemaVersion.String(),
		DocumentID:      raw.DocumentID.String(),
	}
	return nil
}

// Normalize replaces nil lists with empty ones, recursively, so the record
// serializes with [] instead of null for every list field.
func (r *ProductRecord) Normalize() {
	d := &r.ProductDetails
	d.SecondaryImages = texts(d.SecondaryImages)
	if d.PriceInformation.BulkPricing == nil {
		d.PriceInformation.BulkPricing = []PriceTier{}
	}

	c := &r.ProductContent
	c.KeyFeatures = texts(c.KeyFeatures)
	c.BulletPoints = texts(c.BulletPoints)
	c.UsageInstructions = texts(c.UsageInstructions)
	if c.Highlights == nil {
		c.Highlights = []Highlight{}
	}

	td := &r.TechnicalDetails
	if td.Specifications == nil {
		td.Specifications = []SpecGroup{}
	}
	for i := range td.Specifications {
		if td.Specifications[i].Attributes == nil {
			td.Specifications[i].Attributes = []SpecAttribute{}
		}
	}
	td.Materials = texts(td.Materials)
	td.Certifications = texts(td.Certifications)
	td.Compatibility = texts(td.Compatibility)

	t := &r.ClassificationTags
	for _, list := range []*[]Text{
		&t.ProductTypeTags, &t.StyleTags, &t.ColorTags, &t.MaterialTags, &t.OccasionTags,
		&t.SeasonTags, &t.FitTags, &t.TrendTags, &t.DemographicTags, &t.PriceTierTags, &t.AllTags,
	} {
		*list = texts(*list)
	}

	a := &r.AdditionalInformation
	a.Categories = texts(a.Categories)
	a.Warranty.Coverage = texts(a.Warranty.Coverage)
	a.PackageContents = texts(a.PackageContents)
	if a.RelatedProducts == nil {
		a.RelatedProducts = []RelatedProduct{}
	}

	p := &r.PurchaseInformation
	if p.Shipping.Methods == nil {
		p.Shipping.Methods = []ShippingMethod{}
	}
	p.Shipping.Restrictions = texts(p.Shipping.Restrictions)
	p.ReturnPolicy.Conditions = texts(p.ReturnPolicy.Conditions)
	p.PaymentMethods = texts(p.PaymentMethods)

	if r.ReviewsAndRatings.FeaturedReviews == nil {
		r.ReviewsAndRatings.FeaturedReviews = []Review{}
	}

	if r.Metadata.SchemaVersion == "" {
		r.Metadata.SchemaVersion = SchemaVersion
	}
}

func texts(list []Text) []Text {
	if list == nil {
		return []Text{}
	}
	return list
}

// NewProductRecord returns an empty, normalized record.
func NewProductRecord() *ProductRecord {
	r := &ProductRecord{}
	r.Normalize()
	return r
}

// Tags returns the record's tags: all_tags when present, otherwise the union of
// the per-facet tag lists in order, without duplicates.
func (r *ProductRecord) Tags() []string {
	t := r.ClassificationTags
	if all := Texts(t.AllTags); len(all) > 0 {
		return all
	}
	seen := make(map[string]struct{})
	var out []string
	for _, list := range [][]Text{
		t.ProductTypeTags, t.StyleTags, t.ColorTags, t.MaterialTags, t.OccasionTags,
		t.SeasonTags, t.FitTags, t.TrendTags, t.DemographicTags, t.PriceTierTags,
	} {
		for _, tag := range Texts(list) {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
