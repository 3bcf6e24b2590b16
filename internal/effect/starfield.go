package effect

import (
	"math"
	"math/rand"

	"github.com/tejashwikalptaru/avscore/internal/domain"
)

// TypeStarfield is the registry key of StarfieldNode.
const TypeStarfield = "starfield"

const (
	starfieldMaxZ          = 1000.0
	starfieldMinZ          = 1.0
	starfieldBaseSpeed     = 5.0
	starfieldMaxTrailLen   = 20.0
	starfieldSpawnDistance = 800.0
	starfieldSpread        = 1500.0
	starfieldFocal         = 300.0
)

type star struct {
	x, y, z      float64
	prevX, prevY float64
	brightness   float64
}

// StarfieldNode draws a warp-speed starfield over the framebuffer.
// Star speed follows the bass and brightness follows the mids.
type StarfieldNode struct {
	Base

	seed    int64
	rng     *rand.Rand
	stars   []star
	bassAvg float64
	midAvg  float64
}

// NewStarfieldNode creates a starfield generator.
func NewStarfieldNode(id string, opts Options) *StarfieldNode {
	n := &StarfieldNode{
		Base: NewBase(id, TypeStarfield, "Starfield", []domain.ParamSpec{
			numberSpec("stars", "Number of stars", 1, 2000, 200),
			numberSpec("speed", "Speed multiplier", 0, 10, 1),
			boolSpec("trails", "Draw motion trails", true),
			boolSpec("clear", "Clear to black before drawing", true),
		}),
		seed: opts.Seed,
	}
	n.Reset()
	return n
}

// Reset scatters the stars again from the seed.
func (n *StarfieldNode) Reset() {
	n.rng = rand.New(rand.NewSource(n.seed))
	n.stars = make([]star, n.Int("stars"))
	for i := range n.stars {
		n.spawn(&n.stars[i], true)
	}
	n.bassAvg = 0.1
	n.midAvg = 0
}

func (n *StarfieldNode) spawn(s *star, randomZ bool) {
	s.x = (n.rng.Float64() - 0.5) * starfieldSpread
	s.y = (n.rng.Float64() - 0.5) * starfieldSpread
	if randomZ {
		s.z = n.rng.Float64()*starfieldMaxZ + starfieldMinZ
	} else {
		s.z = starfieldSpawnDistance + n.rng.Float64()*200
	}
	s.brightness = 0.5 + n.rng.Float64()*0.5
	s.prevX = 0
	s.prevY = 0
}

// Process moves the stars and draws them.
func (n *StarfieldNode) Process(fb *domain.Framebuffer, frame *Frame) error {
	if len(n.stars) != n.Int("stars") {
		n.Reset()
	}
	if n.Bool("clear") {
		fb.Fill(0, 0, 0, 255)
	}

	n.bassAvg = n.bassAvg*0.7 + frame.Bass*0.3
	n.midAvg = n.midAvg*0.7 + frame.Mid*0.3

	speed := (starfieldBaseSpeed + n.bassAvg*30.0) * n.Number("speed") * frame.DeltaSeconds() * 60
	trailLen := math.Min(speed*0.5, starfieldMaxTrailLen)
	trails := n.Bool("trails")

	centerX := float64(fb.Width) / 2
	centerY := float64(fb.Height) / 2
	// The projection was tuned for a 600 pixel wide view.
	focal := starfieldFocal * float64(fb.Width) / 600

	for i := range n.stars {
		s := &n.stars[i]

		if s.z > starfieldMinZ {
			s.prevX = s.x / s.z * focal
			s.prevY = s.y / s.z * focal
		}
		s.z -= speed
		if s.z < starfieldMinZ {
			n.spawn(s, false)
			continue
		}

		scale := focal / s.z
		sx := s.x*scale + centerX
		sy := s.y*scale + centerY
		if sx < 0 || sx >= float64(fb.Width) || sy < 0 || sy >= float64(fb.Height) {
			n.spawn(s, false)
			continue
		}

		depth := 1.0 - s.z/starfieldMaxZ
		brightness := math.Min(s.brightness*depth+n.midAvg*0.3, 1.0)

		// White near, blue far
		var r, g, b float64
		switch {
		case s.z < starfieldMaxZ*0.3:
			r, g, b = 255, 255, 200
		case s.z < starfieldMaxZ*0.6:
			r, g, b = 255, 255, 255
		default:
			r, g, b = 150, 180, 255
		}
		r, g, b = r*brightness, g*brightness, b*brightness

		if trails && trailLen > 1 && s.prevX != 0 && s.prevY != 0 {
			drawTrail(fb, s.prevX+centerX, s.prevY+centerY, sx, sy, r, g, b)
		}

		size := int(math.Max(1, 3*depth))
		for dy := -size / 2; dy <= size/2; dy++ {
			for dx := -size / 2; dx <= size/2; dx++ {
				plot(fb, int(sx)+dx, int(sy)+dy, r, g, b, domain.BlendReplace)
			}
		}
	}
	return nil
}

// drawTrail draws a line that fades in toward the star.
func drawTrail(fb *domain.Framebuffer, x1, y1, x2, y2, r, g, b float64) {
	dx := x2 - x1
	dy := y2 - y1
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		return
	}
	xInc := dx / float64(steps)
	yInc := dy / float64(steps)
	x, y := x1, y1
	for i := 0; i <= steps; i++ {
		fade := float64(i) / float64(steps)
		plot(fb, int(x), int(y), r*fade, g*fade, b*fade, domain.BlendMax)
		x += xInc
		y += yInc
	}
}
