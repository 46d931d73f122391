// Package arcgis adapts a remote ArcGIS Feature/Map Service to the
// provider interface. It speaks the service's query protocol: SQL-ish
// where clauses, orderByFields, envelope geometry, and offset paging,
// always requesting GeoJSON output in WGS84.
package arcgis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/hydrologic/mainstem/internal/geo"
	"github.com/hydrologic/mainstem/internal/provider"
)

const (
	tokenURL       = "https://www.arcgis.com/sharing/rest/generateToken"
	defaultTimeout = 30 * time.Second
	defaultLimit   = 1000
)

// Config selects the remote service and, optionally, portal credentials
// and a mapping from public attribute names to the service's own field
// names (identity when omitted).
type Config struct {
	URL      string
	Username string
	Password string
	FieldMap map[string]string
}

// Provider is a remote ArcGIS feature service implementing
// provider.Interface. Construction fetches a token (when credentials are
// given) and the service's field list, and verifies the service supports
// pagination, orderBy, and GeoJSON output.
type Provider struct {
	url      string
	token    string
	client   *http.Client
	fieldMap map[string]string // public name -> remote field
	inverse  map[string]string // remote field -> public name
	fields   map[string]fieldInfo
}

type fieldInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// New connects to the service described by cfg.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{
		url:      strings.TrimRight(cfg.URL, "/"),
		client:   &http.Client{Timeout: defaultTimeout},
		fieldMap: map[string]string{},
		inverse:  map[string]string{},
	}
	for pub, remote := range cfg.FieldMap {
		p.fieldMap[pub] = remote
		p.inverse[remote] = pub
	}

	if cfg.Username != "" && cfg.Password != "" {
		if err := p.generateToken(ctx, cfg.Username, cfg.Password); err != nil {
			return nil, err
		}
	}
	if err := p.loadFields(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// generateToken exchanges portal credentials for a request token.
func (p *Provider) generateToken(ctx context.Context, username, password string) error {
	form := url.Values{
		"f":        {"pjson"},
		"username": {username},
		"password": {password},
		"referer":  {"http://www.arcgis.com/"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	p.token = body.Token
	return nil
}

// loadFields fetches service metadata, verifies required capabilities,
// and records the field list for KnownFields and where-clause quoting.
func (p *Provider) loadFields(ctx context.Context) error {
	var meta struct {
		Fields                 []fieldInfo `json:"fields"`
		SupportedQueryFormats  string      `json:"supportedQueryFormats"`
		AdvancedQueryCapable   *struct {
			SupportsPagination bool `json:"supportsPagination"`
			SupportsOrderBy    bool `json:"supportsOrderBy"`
		} `json:"advancedQueryCapabilities"`
	}
	params := url.Values{"f": {"pjson"}}
	if p.token != "" {
		params.Set("token", p.token)
	}
	if err := p.getJSON(ctx, p.url, params, &meta); err != nil {
		return err
	}

	if meta.AdvancedQueryCapable == nil ||
		!meta.AdvancedQueryCapable.SupportsPagination ||
		!meta.AdvancedQueryCapable.SupportsOrderBy ||
		!strings.Contains(meta.SupportedQueryFormats, "geoJSON") {
		return errors.New("unsupported feature service: needs pagination, orderBy, and geoJSON")
	}

	p.fields = make(map[string]fieldInfo, len(meta.Fields))
	for _, f := range meta.Fields {
		p.fields[f.Name] = f
	}
	return nil
}

// KnownFields reports the service's attribute names, translated back to
// public names where a mapping exists.
func (p *Provider) KnownFields() map[string]struct{} {
	out := make(map[string]struct{}, len(p.fields))
	for name := range p.fields {
		if pub, ok := p.inverse[name]; ok {
			name = pub
		}
		out[name] = struct{}{}
	}
	return out
}

// remoteField maps a public attribute name to the service field name.
func (p *Provider) remoteField(name string) string {
	if remote, ok := p.fieldMap[name]; ok {
		return remote
	}
	return name
}

// Query runs one feature-service query, re-fetching further pages when
// the service returns fewer rows than requested.
func (p *Provider) Query(ctx context.Context, q provider.Query) ([]geo.Segment, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	params := url.Values{
		"f":                 {"geoJSON"},
		"outSR":             {"4326"},
		"outFields":         {"*"},
		"where":             {"1=1"},
		"resultOffset":      {fmt.Sprint(q.Offset)},
		"resultRecordCount": {fmt.Sprint(limit)},
	}
	if len(q.Conditions) > 0 {
		where, err := p.whereClause(q.Conditions, q.Combine)
		if err != nil {
			return nil, err
		}
		params.Set("where", where)
	}
	if q.BBox != nil {
		params.Set("inSR", "4326")
		params.Set("geometryType", "esriGeometryEnvelope")
		params.Set("geometry", fmt.Sprintf("%v,%v,%v,%v",
			q.BBox.MinLon, q.BBox.MinLat, q.BBox.MaxLon, q.BBox.MaxLat))
	}
	if len(q.Sort) > 0 {
		params.Set("orderByFields", p.orderBy(q.Sort))
	}
	if p.token != "" {
		params.Set("token", p.token)
	}

	var segments []geo.Segment
	offset := q.Offset
	for {
		fc, err := p.fetchPage(ctx, params)
		if err != nil {
			return nil, err
		}
		page, err := p.segments(fc)
		if err != nil {
			return nil, err
		}
		segments = append(segments, page...)

		// The service may cap a single response below the requested
		// count; keep paging until the limit is met or pages dry up.
		if len(segments) >= limit || len(page) == 0 {
			break
		}
		offset += len(page)
		params.Set("resultOffset", fmt.Sprint(offset))
		params.Set("resultRecordCount", fmt.Sprint(limit-len(segments)))
	}

	if len(segments) > limit {
		segments = segments[:limit]
	}
	if segments == nil {
		segments = []geo.Segment{}
	}
	return segments, nil
}

// Get queries the service by object id.
func (p *Provider) Get(ctx context.Context, id string) (geo.Segment, error) {
	params := url.Values{
		"f":         {"geoJSON"},
		"outSR":     {"4326"},
		"outFields": {"*"},
		"objectIds": {id},
	}
	if p.token != "" {
		params.Set("token", p.token)
	}

	fc, err := p.fetchPage(ctx, params)
	if err != nil {
		return geo.Segment{}, err
	}
	segs, err := p.segments(fc)
	if err != nil {
		return geo.Segment{}, err
	}
	if len(segs) == 0 {
		return geo.Segment{}, provider.ErrNotFound
	}
	return segs[0], nil
}

// fetchPage issues one query request and decodes the GeoJSON response.
func (p *Provider) fetchPage(ctx context.Context, params url.Values) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.url+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build query request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feature service query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feature service returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read query response: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return fc, nil
}

// segments maps response features onto the segment model, translating
// remote field names back to public names.
func (p *Provider) segments(fc *geojson.FeatureCollection) ([]geo.Segment, error) {
	out := make([]geo.Segment, 0, len(fc.Features))
	for i, f := range fc.Features {
		seg, err := p.segment(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		out = append(out, seg)
	}
	return out, nil
}

func (p *Provider) segment(f *geojson.Feature) (geo.Segment, error) {
	var seg geo.Segment

	switch g := f.Geometry.(type) {
	case orb.LineString:
		seg.Geometry = g
	case orb.MultiLineString:
		if len(g) != 1 {
			return seg, fmt.Errorf("geometry has %d strands, want 1", len(g))
		}
		seg.Geometry = g[0]
	default:
		return seg, fmt.Errorf("geometry is %T, want LineString", f.Geometry)
	}

	props := map[string]any{}
	for name, v := range f.Properties {
		if pub, ok := p.inverse[name]; ok {
			name = pub
		}
		props[name] = v
	}

	switch id := f.ID.(type) {
	case string:
		seg.ID = id
	case float64:
		seg.ID = fmt.Sprintf("%.0f", id)
	default:
		if s, ok := props[geo.FieldID].(string); ok {
			seg.ID = s
		} else if n, ok := props[geo.FieldID].(float64); ok {
			seg.ID = fmt.Sprintf("%.0f", n)
		}
	}

	if n, ok := props[geo.FieldPathID].(float64); ok {
		seg.PathID = int64(n)
	}
	if n, ok := props[geo.FieldSequence].(float64); ok {
		seg.Sequence = n
	}
	if n, ok := props[geo.FieldNextPathID].(float64); ok {
		seg.NextPathID = int64(n)
	}
	if n, ok := props[geo.FieldNextSequence].(float64); ok {
		seg.NextSequence = n
	}
	if s, ok := props[geo.FieldDownstreamChain].(string); ok {
		seg.DownstreamChain = s
	}
	for _, k := range []string{geo.FieldID, geo.FieldPathID, geo.FieldSequence,
		geo.FieldNextPathID, geo.FieldNextSequence, geo.FieldDownstreamChain} {
		delete(props, k)
	}
	seg.Props = props

	return seg, nil
}

// whereClause renders conditions into the service's where syntax,
// quoting by field type the way the service expects.
func (p *Provider) whereClause(conditions []provider.Condition, combine provider.Combine) (string, error) {
	parts := make([]string, 0, len(conditions))
	for _, c := range conditions {
		remote := p.remoteField(c.Name)
		f, ok := p.fields[remote]
		if !ok {
			return "", fmt.Errorf("unknown field %q", c.Name)
		}
		if strings.Contains(f.Type, "String") {
			// Single quotes double inside a quoted literal.
			v := strings.ReplaceAll(fmt.Sprintf("%v", c.Value), "'", "''")
			parts = append(parts, fmt.Sprintf("%s = '%s'", remote, v))
		} else {
			parts = append(parts, fmt.Sprintf("%s = %v", remote, c.Value))
		}
	}
	joiner := " AND "
	if combine == provider.CombineOr {
		joiner = " OR "
	}
	return strings.Join(parts, joiner), nil
}

// orderBy renders sort terms as orderByFields.
func (p *Provider) orderBy(sorts []provider.Sort) string {
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		dir := "ASC"
		if s.Descending {
			dir = "DESC"
		}
		parts = append(parts, p.remoteField(s.Property)+" "+dir)
	}
	return strings.Join(parts, ",")
}

// getJSON fetches a URL with params and decodes the JSON body.
func (p *Provider) getJSON(ctx context.Context, rawURL string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		rawURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", rawURL, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
