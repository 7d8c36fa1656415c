package gpu

// BufferUsage is a bit set describing how a buffer may be used. Values match the WebGPU flags.
type BufferUsage uint32

const (
	BufferUsageMapRead      BufferUsage = 0x0001
	BufferUsageMapWrite     BufferUsage = 0x0002
	BufferUsageCopySrc      BufferUsage = 0x0004
	BufferUsageCopyDst      BufferUsage = 0x0008
	BufferUsageIndex        BufferUsage = 0x0010
	BufferUsageVertex       BufferUsage = 0x0020
	BufferUsageUniform      BufferUsage = 0x0040
	BufferUsageStorage      BufferUsage = 0x0080
	BufferUsageIndirect     BufferUsage = 0x0100
	BufferUsageQueryResolve BufferUsage = 0x0200
)

// MapMode selects read or write access for Buffer.MapAsync.
type MapMode uint32

const (
	MapModeRead  MapMode = 0x0001
	MapModeWrite MapMode = 0x0002
)

// MapStatus is the result delivered to a MapAsync callback.
type MapStatus int

const (
	MapStatusSuccess MapStatus = iota
	MapStatusError
	MapStatusAborted
	MapStatusDestroyed
)

func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "success"
	case MapStatusError:
		return "error"
	case MapStatusAborted:
		return "aborted"
	case MapStatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// MapState tracks whether a buffer's memory is currently visible to the CPU.
type MapState int

const (
	MapStateUnmapped MapState = iota
	MapStatePending
	MapStateMapped
)

// IndexFormat is the element width of an index buffer. IndexFormatNone marks non-indexed geometry.
type IndexFormat int

const (
	IndexFormatNone IndexFormat = iota
	IndexFormatUint16
	IndexFormatUint32
)

// Size returns the byte width of one index, or 0 for IndexFormatNone.
func (f IndexFormat) Size() int {
	switch f {
	case IndexFormatUint16:
		return 2
	case IndexFormatUint32:
		return 4
	default:
		return 0
	}
}

func (f IndexFormat) String() string {
	switch f {
	case IndexFormatUint16:
		return "uint16"
	case IndexFormatUint32:
		return "uint32"
	default:
		return "none"
	}
}

// TextureFormat is the subset of texture formats the render graph creates or renders into.
type TextureFormat int

const (
	TextureFormatUndefined TextureFormat = iota
	TextureFormatBGRA8Unorm
	TextureFormatBGRA8UnormSrgb
	TextureFormatRGBA8Unorm
	TextureFormatRGBA8UnormSrgb
	TextureFormatDepth24Plus
	TextureFormatDepth32Float
)

// ShaderStage is a bit set of the shader stages a binding is visible to.
type ShaderStage uint32

const (
	ShaderStageVertex   ShaderStage = 0x1
	ShaderStageFragment ShaderStage = 0x2
	ShaderStageCompute  ShaderStage = 0x4
)

// BindingType identifies the resource kind of a bind group layout entry.
type BindingType int

const (
	BindingTypeUniform BindingType = iota
	BindingTypeStorage
	BindingTypeReadOnlyStorage
	BindingTypeTexture
	BindingTypeSampler
)

// VertexFormat is the format of one vertex attribute.
type VertexFormat int

const (
	VertexFormatFloat32 VertexFormat = iota
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatFloat32x4
	VertexFormatUint32
)

// VertexStepMode selects per-vertex or per-instance attribute stepping.
type VertexStepMode int

const (
	VertexStepModeVertex VertexStepMode = iota
	VertexStepModeInstance
)

// CullMode selects which triangle faces are discarded.
type CullMode int

const (
	CullModeNone CullMode = iota
	CullModeFront
	CullModeBack
)

// Topology is the primitive topology of a render pipeline.
type Topology int

const (
	TopologyTriangleList Topology = iota
	TopologyTriangleStrip
	TopologyLineList
	TopologyPointList
)

// Feature names an optional device capability.
type Feature int

const (
	FeatureTimestampQuery Feature = iota
)

// Color is an RGBA clear color.
type Color struct {
	R, G, B, A float64
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label            string
	Size             uint64
	Usage            BufferUsage
	MappedAtCreation bool
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format TextureFormat
	// RenderAttachment marks the texture as a render target; TextureBinding as sampleable.
	RenderAttachment bool
	TextureBinding   bool
}

// BindGroupLayoutEntry describes one binding slot of a bind group layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Visibility ShaderStage
	Type       BindingType
}

// BindGroupLayoutDescriptor describes a bind group layout to create.
type BindGroupLayoutDescriptor struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds a resource to one slot. Exactly one of Buffer, TextureView or Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64 // 0 binds the whole buffer from Offset
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDescriptor describes a bind group to create.
type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// VertexAttribute describes one attribute inside a vertex buffer layout.
type VertexAttribute struct {
	Format         VertexFormat
	Offset         uint64
	ShaderLocation uint32
}

// VertexBufferLayout describes the stride and attributes of one vertex buffer slot.
type VertexBufferLayout struct {
	ArrayStride uint64
	StepMode    VertexStepMode
	Attributes  []VertexAttribute
}

// RenderPipelineDescriptor describes a render pipeline built from one WGSL module.
type RenderPipelineDescriptor struct {
	Label            string
	ShaderSource     string
	VertexEntry      string
	FragmentEntry    string
	VertexLayouts    []VertexBufferLayout
	BindGroupLayouts []BindGroupLayout
	ColorFormat      TextureFormat
	// DepthFormat TextureFormatUndefined disables depth testing.
	DepthFormat TextureFormat
	CullMode    CullMode
	Topology    Topology
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	View       TextureView
	ClearValue Color
	// Load keeps the previous contents instead of clearing.
	Load bool
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	View       TextureView
	ClearValue float32
	Load       bool
}

// TimestampWrites requests GPU timestamps at the start and end of a render pass.
type TimestampWrites struct {
	QuerySet   QuerySet
	BeginIndex uint32
	EndIndex   uint32
}

// RenderPassDescriptor describes a render pass to begin.
type RenderPassDescriptor struct {
	Label            string
	ColorAttachments []ColorAttachment
	Depth            *DepthAttachment
	Timestamps       *TimestampWrites
}

// Buffer is a GPU buffer. Map callbacks are delivered from Device.Poll.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	MapState() MapState

	// MapAsync requests CPU access to [offset, offset+size). The callback runs from a later Device.Poll.
	MapAsync(mode MapMode, offset, size uint64, callback func(MapStatus)) error

	// MappedRange returns the CPU view of a mapped range. The view is invalid after Unmap.
	MappedRange(offset, size uint64) ([]byte, error)

	Unmap() error
	Destroy()
}

// Queue submits work to the device.
type Queue interface {
	WriteBuffer(buf Buffer, offset uint64, data []byte) error
	Submit(commands ...CommandBuffer) error
}

// CommandBuffer is a finished, submittable list of commands.
type CommandBuffer interface {
	Release()
}

// CommandEncoder records copies, render passes and query resolves.
type CommandEncoder interface {
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64) error
	BeginRenderPass(desc *RenderPassDescriptor) (RenderPassEncoder, error)
	ResolveQuerySet(querySet QuerySet, firstQuery, queryCount uint32, dst Buffer, dstOffset uint64) error
	Finish() (CommandBuffer, error)
	Release()
}

// RenderPassEncoder records draw state and draw calls for one render pass.
type RenderPassEncoder interface {
	SetPipeline(pipeline RenderPipeline)
	SetBindGroup(group uint32, bindGroup BindGroup)
	SetVertexBuffer(slot uint32, buf Buffer)
	SetIndexBuffer(buf Buffer, format IndexFormat)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	PushDebugGroup(label string)
	PopDebugGroup()
	End() error
}

// BindGroupLayout is a created bind group layout.
type BindGroupLayout interface {
	Label() string
	Release()
}

// BindGroup is a created bind group.
type BindGroup interface {
	Label() string
	Release()
}

// RenderPipeline is a created render pipeline.
type RenderPipeline interface {
	Label() string
	Release()
}

// QuerySet is a set of timestamp queries.
type QuerySet interface {
	Count() uint32
	Release()
}

// Texture is a created texture.
type Texture interface {
	Width() uint32
	Height() uint32
	Format() TextureFormat
	CreateView() (TextureView, error)
	Release()
}

// TextureView is a view onto a texture usable as an attachment or binding.
type TextureView interface {
	Release()
}

// Sampler is a created sampler.
type Sampler interface {
	Release()
}

// Surface is the presentable target of a window. AcquireView returns the view of the
// texture to render into this frame; Present shows it and releases the frame.
type Surface interface {
	Configure(width, height int) error
	Size() (width, height int)
	Format() TextureFormat
	AcquireView() (TextureView, error)
	Present()
	Release()
}

// Device creates GPU resources and owns the queue.
type Device interface {
	Queue() Queue
	CreateBuffer(desc *BufferDescriptor) (Buffer, error)
	CreateBufferInit(label string, usage BufferUsage, contents []byte) (Buffer, error)
	CreateTexture(desc *TextureDescriptor) (Texture, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	CreateBindGroupLayout(desc *BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateQuerySet(label string, count uint32) (QuerySet, error)
	HasFeature(feature Feature) bool

	// SetErrorHandler installs the callback receiving uncaptured device errors.
	SetErrorHandler(handler func(err error))

	// Poll delivers pending map callbacks. With wait set it blocks until queued work completes.
	Poll(wait bool)

	Release()
}
